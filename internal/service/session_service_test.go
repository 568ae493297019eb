package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"course_form_backend/internal/config"
	"course_form_backend/internal/flow"
	"course_form_backend/internal/model"
	"course_form_backend/internal/repository"
	"course_form_backend/internal/util"
	"course_form_backend/pkg/logger"

	"github.com/alicebob/miniredis/v2"
	"github.com/glebarez/sqlite"
	"github.com/go-redis/redis/v8"
	"go.uber.org/zap"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"
)

func init() {
	// 服务层打日志用的全局 logger 在测试里指向空实现
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
	sqlDB.SetMaxOpenConns(1)

	// User 的列定义是 MySQL 方言，sqlite 下不迁移
	if err := db.AutoMigrate(&model.FormAnswer{}, &model.Form{}, &model.FormBlock{}); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	return db
}

func setupSessionService(t *testing.T, idleTimeout time.Duration) (*SessionService, *repository.AnswerRepository) {
	t.Helper()
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})

	answerRepo := repository.NewAnswerRepository(setupTestDB(t))
	cfg := &config.Config{
		Session: config.SessionConfig{
			Secret:      "test-secret",
			IdleTimeout: idleTimeout,
			CookieName:  "form_session",
		},
	}
	return NewSessionService(rdb, answerRepo, cfg), answerRepo
}

func TestSessionCreateHydratesAnswers(t *testing.T) {
	svc, repo := setupSessionService(t, 30*time.Minute)
	ctx := context.Background()

	if err := repo.Upsert(1, "q1", 10, flow.ScalarAnswer("hello")); err != nil {
		t.Fatalf("seed answer: %v", err)
	}

	sess, err := svc.Create(ctx, 1, 10)
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	if !sess.Authenticated {
		t.Error("fresh session must be authenticated")
	}
	if got := sess.Answers["q1"]; got.Scalar != "hello" {
		t.Errorf("answers not hydrated at login: %+v", sess.Answers)
	}

	back, err := svc.Get(ctx, sess.SessionID)
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if back.UserID != 1 || back.FormID != 10 {
		t.Errorf("session record mismatch: %+v", back)
	}
}

func TestSessionExpiryKeepsRecordAndAnswers(t *testing.T) {
	svc, repo := setupSessionService(t, 100*time.Millisecond)
	ctx := context.Background()

	// 会话期内自动保存过一条答案
	if err := repo.Upsert(1, "q1", 10, flow.ScalarAnswer("saved")); err != nil {
		t.Fatalf("seed answer: %v", err)
	}

	sess, err := svc.Create(ctx, 1, 10)
	if err != nil {
		t.Fatalf("Create: %v", err)
	}

	time.Sleep(150 * time.Millisecond)

	back, err := svc.Get(ctx, sess.SessionID)
	if err != nil {
		t.Fatalf("Get after expiry: %v", err)
	}
	if back.Authenticated {
		t.Error("expired session must be unauthenticated")
	}

	// 记录只是翻了认证标记，没被销毁
	again, err := svc.Get(ctx, sess.SessionID)
	if err != nil {
		t.Fatalf("record must survive expiry: %v", err)
	}
	if again.Authenticated {
		t.Error("expiry flag must be persisted")
	}

	// 持久化的答案不受会话过期影响，可供之后续填
	answers, err := repo.ReadAll(1, 10)
	if err != nil {
		t.Fatalf("ReadAll after expiry: %v", err)
	}
	if got := answers["q1"]; got.Scalar != "saved" {
		t.Errorf("persisted answers must survive expiry: %+v", answers)
	}
}

func TestSessionTouchResetsIdleClock(t *testing.T) {
	svc, _ := setupSessionService(t, 100*time.Millisecond)
	ctx := context.Background()

	sess, err := svc.Create(ctx, 1, 10)
	if err != nil {
		t.Fatalf("Create: %v", err)
	}

	time.Sleep(60 * time.Millisecond)
	if err := svc.Touch(ctx, sess); err != nil {
		t.Fatalf("Touch: %v", err)
	}
	time.Sleep(60 * time.Millisecond)

	back, err := svc.Get(ctx, sess.SessionID)
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if !back.Authenticated {
		t.Error("touched session must still be authenticated within the idle window")
	}
}

func TestSessionAnswersReadThrough(t *testing.T) {
	svc, repo := setupSessionService(t, 30*time.Minute)
	ctx := context.Background()

	sess, err := svc.Create(ctx, 1, 10)
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	if len(sess.Answers) != 0 {
		t.Fatalf("expected empty cache, got %+v", sess.Answers)
	}

	// DB 里后来出现了答案（例如另一端写入），缓存为空时应回源重算
	if err := repo.Upsert(1, "q1", 10, flow.ScalarAnswer("late")); err != nil {
		t.Fatalf("seed answer: %v", err)
	}

	answers, err := svc.Answers(ctx, sess)
	if err != nil {
		t.Fatalf("Answers: %v", err)
	}
	if got := answers["q1"]; got.Scalar != "late" {
		t.Errorf("read-through failed: %+v", answers)
	}

	// 回填后的缓存随记录持久化
	back, err := svc.Get(ctx, sess.SessionID)
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if got := back.Answers["q1"]; got.Scalar != "late" {
		t.Errorf("cache not repopulated: %+v", back.Answers)
	}
}

func TestSessionUpdateAnswerWriteThrough(t *testing.T) {
	svc, _ := setupSessionService(t, 30*time.Minute)
	ctx := context.Background()

	sess, err := svc.Create(ctx, 1, 10)
	if err != nil {
		t.Fatalf("Create: %v", err)
	}

	if err := svc.UpdateAnswer(ctx, sess, "q1", flow.ListAnswer([]string{"a", "b"})); err != nil {
		t.Fatalf("UpdateAnswer: %v", err)
	}

	back, err := svc.Get(ctx, sess.SessionID)
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	got := back.Answers["q1"]
	if !got.IsList || got.String() != "a,b" {
		t.Errorf("write-through failed: %+v", got)
	}
}

func TestSessionInvalidate(t *testing.T) {
	svc, _ := setupSessionService(t, 30*time.Minute)
	ctx := context.Background()

	sess, err := svc.Create(ctx, 1, 10)
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	if err := svc.Invalidate(ctx, sess.SessionID); err != nil {
		t.Fatalf("Invalidate: %v", err)
	}

	if _, err := svc.Get(ctx, sess.SessionID); !errors.Is(err, util.ErrSessionNotFound) {
		t.Errorf("expected ErrSessionNotFound after logout, got %v", err)
	}
}
