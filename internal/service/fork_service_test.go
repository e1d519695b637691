package service

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"go.uber.org/zap"

	"github.com/MR-GREEN1337/Thoth-sub001/config"
	"github.com/MR-GREEN1337/Thoth-sub001/internal/model"
	pkgerrors "github.com/MR-GREEN1337/Thoth-sub001/pkg/errors"
)

func forkTestConfig() *config.Config {
	return &config.Config{
		Fork: config.ForkConfig{
			TxAdmissionWait: 5 * time.Second,
			TxExecTimeout:   10 * time.Second,
			TxMaxConcurrent: 8,
			TitleSuffix:     " (Fork)",
		},
	}
}

// newForkFixture 源课程：两个有序模块 + 两个兴趣标签
func newForkFixture(t *testing.T) (*testEnv, ForkService) {
	t.Helper()
	env := newTestEnv()
	env.addUser("user-author", "Author")
	env.addUser("user-forker", "Forker")

	src := env.addCourse("src-course", "user-author", "分布式系统")
	src.Description = "从共识到存储"
	src.MarketScore = 0.8
	src.TrendScore = 0.6
	src.KeyTakeaways = model.StringArray{"CAP", "Raft"}
	src.Prerequisites = model.StringArray{"网络基础"}
	src.EstimatedHours = 40

	env.addModule("src-course", "共识算法", 1, 90, false)
	env.addModule("src-course", "分布式存储", 2, 120, true)

	ctx := context.Background()
	for _, name := range []string{"distributed", "golang"} {
		interest, err := env.interests.GetOrCreateByName(ctx, name)
		if err != nil {
			t.Fatalf("装配兴趣标签失败: %v", err)
		}
		if err := env.interests.AttachToCourse(ctx, "src-course", []model.Interest{*interest}); err != nil {
			t.Fatalf("关联兴趣标签失败: %v", err)
		}
	}

	svc := NewForkService(forkTestConfig(), env.repo, nil, zap.NewNop())
	return env, svc
}

// ────────────────────── CreateFork ──────────────────────

func TestCreateForkSuccess(t *testing.T) {
	env, svc := newForkFixture(t)

	resp, err := svc.CreateFork(context.Background(), "user-forker", "src-course")
	if err != nil {
		t.Fatalf("CreateFork 错误: %v", err)
	}

	// 响应：新课程归属 Fork 用户，标题带后缀，从 DRAFT 开始
	if resp.Course.Title != "分布式系统 (Fork)" {
		t.Errorf("标题 = %s, 期望带 Fork 后缀", resp.Course.Title)
	}
	if resp.Course.Status != model.CourseStatusDraft {
		t.Errorf("状态 = %s, 期望 DRAFT", resp.Course.Status)
	}
	if resp.Course.AuthorID != "user-forker" {
		t.Errorf("作者 = %s, 期望 user-forker", resp.Course.AuthorID)
	}
	if resp.OriginalCourseID != "src-course" {
		t.Errorf("OriginalCourseID = %s, 期望 src-course", resp.OriginalCourseID)
	}
	if resp.OriginalForkCount != 1 {
		t.Errorf("OriginalForkCount = %d, 期望 1", resp.OriginalForkCount)
	}

	// 内容字段逐项拷贝
	if resp.Course.Description != "从共识到存储" {
		t.Errorf("描述未拷贝: %s", resp.Course.Description)
	}
	if resp.Course.MarketScore != 0.8 || resp.Course.TrendScore != 0.6 {
		t.Errorf("评分未拷贝: market=%v trend=%v", resp.Course.MarketScore, resp.Course.TrendScore)
	}
	if len(resp.Course.KeyTakeaways) != 2 || resp.Course.KeyTakeaways[0] != "CAP" {
		t.Errorf("要点未拷贝: %v", resp.Course.KeyTakeaways)
	}
	if resp.Course.EstimatedHours != 40 {
		t.Errorf("学时未拷贝: %d", resp.Course.EstimatedHours)
	}

	// 模块深拷贝：数量、顺序、时长、AI 标记全部保持
	if len(resp.Course.Modules) != 2 {
		t.Fatalf("模块数 = %d, 期望 2", len(resp.Course.Modules))
	}
	if resp.Course.Modules[0].Title != "共识算法" || resp.Course.Modules[0].Position != 1 {
		t.Errorf("模块顺序错乱: %+v", resp.Course.Modules[0])
	}
	if resp.Course.Modules[1].DurationMinutes != 120 || !resp.Course.Modules[1].IsAIGenerated {
		t.Errorf("模块属性未保持: %+v", resp.Course.Modules[1])
	}

	// 模块是全新行，不与源课程共享标识符
	srcModules, _ := env.modules.ListByCourse(context.Background(), "src-course")
	for _, fm := range resp.Course.Modules {
		for _, sm := range srcModules {
			if fm.ID == sm.ModuleID {
				t.Errorf("模块 %s 与源课程共享标识符", fm.ID)
			}
		}
	}

	// 标签共享引用
	if len(resp.Course.Interests) != 2 {
		t.Errorf("标签数 = %d, 期望 2", len(resp.Course.Interests))
	}

	// 血缘边已建立
	edge, err := env.edges.GetByForked(context.Background(), resp.Course.ID)
	if err != nil {
		t.Fatalf("血缘边缺失: %v", err)
	}
	if edge.OriginalCourseID != "src-course" || edge.ForkerUserID != "user-forker" {
		t.Errorf("血缘边字段错误: %+v", edge)
	}

	// 源课程不受影响
	src, _ := env.courses.GetByID(context.Background(), "src-course")
	if src.Title != "分布式系统" || src.Status != model.CourseStatusPublished {
		t.Errorf("源课程被修改: %+v", src)
	}
}

func TestCreateForkSourceNotFound(t *testing.T) {
	_, svc := newForkFixture(t)

	_, err := svc.CreateFork(context.Background(), "user-forker", "no-such-course")
	if !errors.Is(err, ErrCourseNotFound) {
		t.Errorf("期望 ErrCourseNotFound, 实际 %v", err)
	}
}

func TestCreateForkDuplicateSequential(t *testing.T) {
	env, svc := newForkFixture(t)

	if _, err := svc.CreateFork(context.Background(), "user-forker", "src-course"); err != nil {
		t.Fatalf("首次 Fork 错误: %v", err)
	}

	_, err := svc.CreateFork(context.Background(), "user-forker", "src-course")
	if !errors.Is(err, ErrDuplicateFork) {
		t.Errorf("期望 ErrDuplicateFork, 实际 %v", err)
	}

	// 第二次未产生任何状态
	if count, _ := env.edges.CountByOriginal(context.Background(), "src-course"); count != 1 {
		t.Errorf("血缘边数 = %d, 期望 1", count)
	}
	if len(env.courses.courses) != 2 {
		t.Errorf("课程数 = %d, 期望 2（源 + 一个副本）", len(env.courses.courses))
	}
}

// 并发重复：同一用户同时 Fork 同一源课程，恰好一个成功，
// 另一个被唯一索引裁决为重复
func TestCreateForkConcurrentDuplicate(t *testing.T) {
	env, svc := newForkFixture(t)

	const attempts = 4
	errs := make([]error, attempts)

	var wg sync.WaitGroup
	for i := 0; i < attempts; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, errs[i] = svc.CreateFork(context.Background(), "user-forker", "src-course")
		}(i)
	}
	wg.Wait()

	var succeeded, duplicated int
	for _, err := range errs {
		switch {
		case err == nil:
			succeeded++
		case errors.Is(err, ErrDuplicateFork):
			duplicated++
		default:
			t.Errorf("意外错误: %v", err)
		}
	}
	if succeeded != 1 {
		t.Errorf("成功次数 = %d, 期望恰好 1", succeeded)
	}
	if duplicated != attempts-1 {
		t.Errorf("重复次数 = %d, 期望 %d", duplicated, attempts-1)
	}

	// 只留下一条边、一个副本，失败的单元无残留
	if count, _ := env.edges.CountByOriginal(context.Background(), "src-course"); count != 1 {
		t.Errorf("血缘边数 = %d, 期望 1", count)
	}
	if len(env.courses.courses) != 2 {
		t.Errorf("课程数 = %d, 期望 2", len(env.courses.courses))
	}
}

// 原子性：血缘边插入失败时整个单元回滚，新课程与模块全部不可见
func TestCreateForkRollbackOnEdgeFailure(t *testing.T) {
	env, svc := newForkFixture(t)
	env.edges.createErr = errors.New("connection reset")

	_, err := svc.CreateFork(context.Background(), "user-forker", "src-course")
	if !errors.Is(err, pkgerrors.ErrRepository) {
		t.Fatalf("期望 ErrRepository, 实际 %v", err)
	}

	if len(env.courses.courses) != 1 {
		t.Errorf("课程数 = %d, 期望 1（回滚后无副本）", len(env.courses.courses))
	}
	if len(env.modules.modules) != 2 {
		t.Errorf("模块数 = %d, 期望 2（回滚后不应残留副本模块）", len(env.modules.modules))
	}
	if count, _ := env.edges.CountByOriginal(context.Background(), "src-course"); count != 0 {
		t.Errorf("血缘边数 = %d, 期望 0", count)
	}
}

func TestCreateForkRollbackOnModuleFailure(t *testing.T) {
	env, svc := newForkFixture(t)
	env.modules.failErr = errors.New("disk full")

	_, err := svc.CreateFork(context.Background(), "user-forker", "src-course")
	if !errors.Is(err, pkgerrors.ErrRepository) {
		t.Fatalf("期望 ErrRepository, 实际 %v", err)
	}
	if len(env.courses.courses) != 1 {
		t.Errorf("课程数 = %d, 期望 1（回滚后无副本）", len(env.courses.courses))
	}
}

// 时间预算超限原样透传，且无部分状态
func TestCreateForkTransactionTimeout(t *testing.T) {
	env, svc := newForkFixture(t)
	env.runner.forceTimeout = true

	_, err := svc.CreateFork(context.Background(), "user-forker", "src-course")
	if !errors.Is(err, pkgerrors.ErrTransactionTimeout) {
		t.Fatalf("期望 ErrTransactionTimeout, 实际 %v", err)
	}
	if len(env.courses.courses) != 1 {
		t.Errorf("课程数 = %d, 期望 1", len(env.courses.courses))
	}
	if count, _ := env.edges.CountByOriginal(context.Background(), "src-course"); count != 0 {
		t.Errorf("血缘边数 = %d, 期望 0", count)
	}
}

// 不同用户 Fork 同一源课程互不阻塞
func TestCreateForkDifferentUsers(t *testing.T) {
	env, svc := newForkFixture(t)
	env.addUser("user-third", "Third")

	if _, err := svc.CreateFork(context.Background(), "user-forker", "src-course"); err != nil {
		t.Fatalf("首个用户 Fork 错误: %v", err)
	}
	resp, err := svc.CreateFork(context.Background(), "user-third", "src-course")
	if err != nil {
		t.Fatalf("第二个用户 Fork 错误: %v", err)
	}
	if resp.OriginalForkCount != 2 {
		t.Errorf("OriginalForkCount = %d, 期望 2", resp.OriginalForkCount)
	}
}

// Fork 的副本可以再被 Fork，血缘链随之延长
func TestCreateForkOfFork(t *testing.T) {
	env, svc := newForkFixture(t)
	env.addUser("user-third", "Third")

	first, err := svc.CreateFork(context.Background(), "user-forker", "src-course")
	if err != nil {
		t.Fatalf("一级 Fork 错误: %v", err)
	}
	second, err := svc.CreateFork(context.Background(), "user-third", first.Course.ID)
	if err != nil {
		t.Fatalf("二级 Fork 错误: %v", err)
	}

	lineage := NewLineageService(env.repo, zap.NewNop())
	root, err := lineage.FindRoot(context.Background(), second.Course.ID)
	if err != nil {
		t.Fatalf("FindRoot 错误: %v", err)
	}
	if root.RootCourseID != "src-course" {
		t.Errorf("二级副本的根 = %s, 期望 src-course", root.RootCourseID)
	}
}
