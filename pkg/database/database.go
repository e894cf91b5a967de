package database

import (
	"fmt"
	"log"

	"oral_eval_backend/internal/config"
	"oral_eval_backend/internal/model"

	"gorm.io/driver/mysql"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

func InitDB(cfg *config.DatabaseConfig) (*gorm.DB, error) {
	dsn := fmt.Sprintf("%s:%s@tcp(%s:%d)/%s?charset=%s&parseTime=%t&loc=Local",
		cfg.User,
		cfg.Password,
		cfg.Host,
		cfg.Port,
		cfg.DBName,
		cfg.Charset,
		cfg.ParseTime,
	)

	db, err := gorm.Open(mysql.Open(dsn), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Info),
	})

	if err != nil {
		return nil, err
	}

	log.Println("Database connection established")

	err = db.AutoMigrate(
		&model.User{},
		&model.Assignment{},
		&model.AssignmentQuestion{},
		&model.EntryToken{},
		&model.ShareToken{},
		&model.QuotaRecord{},
		&model.Attempt{},
		&model.ItemScore{},
	)

	if err != nil {
		return nil, err
	}

	log.Println("Database migration completed")

	// 默认试卷,便于空库起步联调
	var count int64
	db.Model(&model.Assignment{}).Count(&count)
	if count == 0 {
		assignment := &model.Assignment{
			Level:         "KET",
			Unit:          1,
			Title:         "KET Unit 1 口语测评",
			ReferenceText: "My name is Li Hua. I am twelve years old and I study in a middle school in Beijing. In my free time I like reading books and playing basketball with my friends.",
			Active:        true,
		}
		if err := db.Create(assignment).Error; err == nil {
			defaultQuestions := []string{
				"What is your name?",
				"How old are you?",
				"Where do you live?",
				"What do you like doing in your free time?",
				"Who is your best friend?",
				"What subject do you like best?",
				"What did you do last weekend?",
				"What is the weather like today?",
				"How do you go to school every day?",
				"What is your favourite food?",
				"What do you usually do after school?",
				"What are you going to do this summer?",
			}
			for i, text := range defaultQuestions {
				db.Create(&model.AssignmentQuestion{
					AssignmentID: assignment.ID,
					No:           i + 1,
					Text:         text,
				})
			}
		}
	}

	return db, nil
}
