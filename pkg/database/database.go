package database

import (
	"encoding/json"
	"fmt"
	"log"

	"course_form_backend/internal/config"
	"course_form_backend/internal/model"

	"gorm.io/driver/mysql"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// InitDB 建立 MySQL 连接。migrate 为真时执行自动迁移并在空库里
// 播种演示表单；release 模式默认不迁移，靠 -migrate 参数显式开启。
func InitDB(cfg *config.DatabaseConfig, migrate bool) (*gorm.DB, error) {
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

	if migrate {
		err = db.AutoMigrate(
			&model.User{},
			&model.Form{},
			&model.FormBlock{},
			&model.FormAnswer{},
		)

		if err != nil {
			return nil, err
		}

		log.Println("Database migration completed")

		seedDemoForm(db)
	}

	return db, nil
}

// 默认入学表单：库里没有任何表单时插入一份演示用块树，
// 方便空库起服务后直接联调。
func seedDemoForm(db *gorm.DB) {
	var count int64
	db.Model(&model.Form{}).Count(&count)
	if count > 0 {
		return
	}

	form := &model.Form{
		Title:       "入学信息登记",
		Description: "默认演示表单",
		IsPublished: true,
	}
	if err := db.Create(form).Error; err != nil {
		log.Printf("seed demo form failed: %v", err)
		return
	}

	children := func(ids ...string) json.RawMessage {
		data, _ := json.Marshal(ids)
		return data
	}

	blocks := []model.FormBlock{
		{FormID: form.ID, BlockID: "sec-basic", Type: "section", Children: children("txt-welcome", "q-name", "q-experience"), Order: 0},
		{FormID: form.ID, BlockID: "txt-welcome", Type: "text", ParentID: "sec-basic",
			Content: json.RawMessage(`{"title":"欢迎","text":"请完成以下入学信息登记。"}`), Order: 1},
		{FormID: form.ID, BlockID: "q-name", Type: "question", ParentID: "sec-basic",
			Content: json.RawMessage(`{"title":"姓名","questionType":"text"}`), Order: 2},
		{FormID: form.ID, BlockID: "q-experience", Type: "question", ParentID: "sec-basic",
			Content: json.RawMessage(`{"title":"是否学过编程","questionType":"radio","options":["yes","no"]}`), Order: 3},
		{FormID: form.ID, BlockID: "cond-exp", Type: "condition", Children: children("q-languages"),
			Content: json.RawMessage(`{"condition":{"questionId":"q-experience","operator":"equals","value":"yes"}}`), Order: 4},
		{FormID: form.ID, BlockID: "q-languages", Type: "question", ParentID: "cond-exp",
			Content: json.RawMessage(`{"title":"学过哪些语言","questionType":"checkbox","options":["C","Python","Java","Go"]}`), Order: 5},
	}
	for i := range blocks {
		if err := db.Create(&blocks[i]).Error; err != nil {
			log.Printf("seed demo block %s failed: %v", blocks[i].BlockID, err)
		}
	}
}
