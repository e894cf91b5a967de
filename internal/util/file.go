package util

import (
	"errors"
	"io"
	"net/http"
	"path/filepath"
	"strings"
)

// ValidateAudioUpload 深度校验上传音频
// 浏览器端 MediaRecorder 常以 application/octet-stream 提交,因此扩展名与嗅探结果同时校验
func ValidateAudioUpload(reader io.Reader, filename string) (string, error) {
	buffer := make([]byte, 512)
	n, err := reader.Read(buffer)
	if err != nil && err != io.EOF {
		return "", err
	}

	mimeType := http.DetectContentType(buffer[:n])

	ext := strings.ToLower(filepath.Ext(filename))
	extOK := false
	for _, allowed := range AllowedAudioExtensions {
		if ext == allowed {
			extOK = true
			break
		}
	}
	if !extOK {
		return mimeType, errors.New("invalid audio extension: " + ext)
	}

	// webm 容器会被嗅探为 video/webm,即使其中只有音轨
	if strings.HasPrefix(mimeType, MimeAudio) ||
		strings.HasPrefix(mimeType, "video/webm") ||
		mimeType == MimeOctetStream {
		return mimeType, nil
	}

	return mimeType, errors.New("invalid file type: " + mimeType)
}
