package repository

import (
	"encoding/json"
	"reflect"
	"testing"
	"time"

	"course_form_backend/internal/flow"
	"course_form_backend/internal/model"
	"course_form_backend/pkg/logger"

	"github.com/glebarez/sqlite"
	"go.uber.org/zap"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"
)

func init() {
	// 失败路径会走全局 logger
	logger.Log = zap.NewNop()
}

func setupTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{
		Logger: gormlogger.Default.LogMode(gormlogger.Silent),
	})
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	sqlDB, err := db.DB()
	if err != nil {
		t.Fatalf("unwrap sql.DB: %v", err)
	}
	// 内存库按连接隔离，限制为单连接
	sqlDB.SetMaxOpenConns(1)

	// User 的列定义带 MySQL 独有的 enum/CURRENT_TIMESTAMP(3)，sqlite
	// 下不迁移；这里的用例只依赖答案和表单块两张表
	if err := db.AutoMigrate(&model.FormAnswer{}, &model.Form{}, &model.FormBlock{}); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	return db
}

func fetchRow(t *testing.T, db *gorm.DB, userID uint, questionID string, formID uint) model.FormAnswer {
	t.Helper()
	var row model.FormAnswer
	err := db.Where("user_id = ? AND question_id = ? AND form_id = ?", userID, questionID, formID).
		First(&row).Error
	if err != nil {
		t.Fatalf("fetch row: %v", err)
	}
	return row
}

func TestUpsertDualStorageInvariant(t *testing.T) {
	db := setupTestDB(t)
	repo := NewAnswerRepository(db)

	// 多选答案进 answer_json，answer_value 必须为 NULL
	if err := repo.Upsert(1, "q1", 10, flow.ListAnswer([]string{"a", "b"})); err != nil {
		t.Fatalf("upsert list: %v", err)
	}
	row := fetchRow(t, db, 1, "q1", 10)
	if row.AnswerJson == nil || *row.AnswerJson != `["a","b"]` {
		t.Errorf("answer_json = %v, want [\"a\",\"b\"]", row.AnswerJson)
	}
	if row.AnswerValue != nil {
		t.Errorf("answer_value must be NULL after list upsert, got %q", *row.AnswerValue)
	}

	// 同键改写为单值答案：answer_value 填入，answer_json 必须被清掉
	if err := repo.Upsert(1, "q1", 10, flow.ScalarAnswer("single")); err != nil {
		t.Fatalf("upsert scalar: %v", err)
	}
	row = fetchRow(t, db, 1, "q1", 10)
	if row.AnswerValue == nil || *row.AnswerValue != "single" {
		t.Errorf("answer_value = %v, want single", row.AnswerValue)
	}
	if row.AnswerJson != nil {
		t.Errorf("answer_json must be NULL after scalar upsert, got %q", *row.AnswerJson)
	}
}

func TestUpsertIdempotence(t *testing.T) {
	db := setupTestDB(t)
	repo := NewAnswerRepository(db)

	if err := repo.Upsert(1, "q1", 10, flow.ScalarAnswer("v1")); err != nil {
		t.Fatalf("first upsert: %v", err)
	}
	first := fetchRow(t, db, 1, "q1", 10)

	time.Sleep(5 * time.Millisecond)
	if err := repo.Upsert(1, "q1", 10, flow.ScalarAnswer("v1")); err != nil {
		t.Fatalf("second upsert: %v", err)
	}

	count, err := repo.CountForUser(1, 10)
	if err != nil {
		t.Fatalf("count: %v", err)
	}
	if count != 1 {
		t.Fatalf("expected exactly one row, got %d", count)
	}

	second := fetchRow(t, db, 1, "q1", 10)
	if *second.AnswerValue != "v1" {
		t.Errorf("answer_value = %q, want v1", *second.AnswerValue)
	}
	if !second.UpdatedAt.After(first.UpdatedAt) {
		t.Errorf("updated_at must be refreshed: first=%v second=%v", first.UpdatedAt, second.UpdatedAt)
	}
}

func TestUpsertIsKeyedPerUserQuestionForm(t *testing.T) {
	db := setupTestDB(t)
	repo := NewAnswerRepository(db)

	seed := []struct {
		userID     uint
		questionID string
		formID     uint
	}{
		{1, "q1", 10}, {2, "q1", 10}, {1, "q2", 10}, {1, "q1", 11},
	}
	for _, s := range seed {
		if err := repo.Upsert(s.userID, s.questionID, s.formID, flow.ScalarAnswer("x")); err != nil {
			t.Fatalf("upsert %+v: %v", s, err)
		}
	}

	var total int64
	db.Model(&model.FormAnswer{}).Count(&total)
	if total != 4 {
		t.Errorf("expected 4 distinct rows, got %d", total)
	}
}

func TestReadAllPrefersJSONColumn(t *testing.T) {
	db := setupTestDB(t)
	repo := NewAnswerRepository(db)

	// 历史脏数据：两列同时有值，读取时必须以 answer_json 为准
	oldVal := "old"
	newJSON := `["new"]`
	row := model.FormAnswer{
		UserID:      1,
		QuestionID:  "q1",
		FormID:      10,
		AnswerValue: &oldVal,
		AnswerJson:  &newJSON,
	}
	if err := db.Create(&row).Error; err != nil {
		t.Fatalf("seed dirty row: %v", err)
	}

	scalar := "plain"
	if err := db.Create(&model.FormAnswer{
		UserID: 1, QuestionID: "q2", FormID: 10, AnswerValue: &scalar,
	}).Error; err != nil {
		t.Fatalf("seed scalar row: %v", err)
	}

	// json 列存的也可能是 JSON 字符串而不是数组
	strJSON := `"from-json"`
	if err := db.Create(&model.FormAnswer{
		UserID: 1, QuestionID: "q3", FormID: 10, AnswerJson: &strJSON,
	}).Error; err != nil {
		t.Fatalf("seed string-json row: %v", err)
	}

	answers, err := repo.ReadAll(1, 10)
	if err != nil {
		t.Fatalf("ReadAll: %v", err)
	}

	if got := answers["q1"]; !got.IsList || !reflect.DeepEqual(got.List, []string{"new"}) {
		t.Errorf("q1 = %+v, want list [new]", got)
	}
	if got := answers["q2"]; got.IsList || got.Scalar != "plain" {
		t.Errorf("q2 = %+v, want scalar plain", got)
	}
	if got := answers["q3"]; got.IsList || got.Scalar != "from-json" {
		t.Errorf("q3 = %+v, want scalar from-json", got)
	}
}

func TestSubmitBatchAtomicity(t *testing.T) {
	db := setupTestDB(t)
	repo := NewAnswerRepository(db)

	// 用触发器让第 3 条写入失败，验证整批回滚
	err := db.Exec(`CREATE TRIGGER fail_q3 BEFORE INSERT ON form_answers
		WHEN NEW.question_id = 'q3'
		BEGIN SELECT RAISE(ABORT, 'forced failure'); END;`).Error
	if err != nil {
		t.Fatalf("create trigger: %v", err)
	}

	batch := make([]SubmittedAnswer, 0, 5)
	for _, q := range []string{"q1", "q2", "q3", "q4", "q5"} {
		batch = append(batch, SubmittedAnswer{QuestionID: q, Value: flow.ScalarAnswer("v")})
	}

	if err := repo.SubmitBatch(1, 10, batch); err == nil {
		t.Fatal("expected batch to fail on q3")
	}

	count, err := repo.CountForUser(1, 10)
	if err != nil {
		t.Fatalf("count: %v", err)
	}
	if count != 0 {
		t.Errorf("expected zero committed rows after rollback, got %d", count)
	}
}

func TestSubmitBatchCommitsAll(t *testing.T) {
	db := setupTestDB(t)
	repo := NewAnswerRepository(db)

	batch := []SubmittedAnswer{
		{QuestionID: "q1", Value: flow.ScalarAnswer("a")},
		{QuestionID: "q2", Value: flow.ListAnswer([]string{"x", "y"})},
	}
	if err := repo.SubmitBatch(1, 10, batch); err != nil {
		t.Fatalf("SubmitBatch: %v", err)
	}

	answers, err := repo.ReadAll(1, 10)
	if err != nil {
		t.Fatalf("ReadAll: %v", err)
	}
	if len(answers) != 2 {
		t.Fatalf("expected 2 answers, got %d", len(answers))
	}
	if got := answers["q2"]; !got.IsList || !reflect.DeepEqual(got.List, []string{"x", "y"}) {
		t.Errorf("q2 = %+v, want list [x y]", got)
	}
}

func TestLoadBlockTreeAuthoredOrder(t *testing.T) {
	db := setupTestDB(t)
	forms := NewFormRepository(db)

	form := model.Form{Title: "t", IsPublished: true}
	if err := db.Create(&form).Error; err != nil {
		t.Fatalf("seed form: %v", err)
	}

	children, _ := json.Marshal([]string{"q2", "q1"})
	blocks := []model.FormBlock{
		{FormID: form.ID, BlockID: "sec", Type: "section", Children: children, Order: 0},
		{FormID: form.ID, BlockID: "q1", Type: "question", ParentID: "sec", Order: 2},
		{FormID: form.ID, BlockID: "q2", Type: "question", ParentID: "sec", Order: 1},
	}
	for i := range blocks {
		if err := db.Create(&blocks[i]).Error; err != nil {
			t.Fatalf("seed block: %v", err)
		}
	}

	tree, err := forms.LoadBlockTree(form.ID)
	if err != nil {
		t.Fatalf("LoadBlockTree: %v", err)
	}
	if len(tree.Blocks) != 3 {
		t.Fatalf("expected 3 blocks, got %d", len(tree.Blocks))
	}
	// children 顺序优先于行序：扁平化结果应是 q2, q1
	sec := tree.Lookup("sec")
	if sec == nil || !reflect.DeepEqual(sec.Children, []string{"q2", "q1"}) {
		t.Errorf("section children = %+v, want [q2 q1]", sec)
	}
}
