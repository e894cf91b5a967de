package util

const (
	DateFormat = "2006-01-02"
	TimeFormat = "2006-01-02 15:04:05"
)

const (
	StorageLocal = "local"
	StorageMinio = "minio"
	StorageOSS   = "oss"
)

// 音频上传相关常量
const (
	MimeAudio       = "audio/"
	MimeOctetStream = "application/octet-stream"

	// 两阶段音频在测评中的用途标记,拼入对象键
	StagePhonetic = "part1"
	StageSemantic = "part2"
)

var (
	AllowedAudioExtensions = []string{".wav", ".mp3", ".m4a", ".aac", ".ogg", ".webm"}
)
