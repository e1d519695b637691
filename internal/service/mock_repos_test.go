package service

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"gorm.io/gorm"

	"github.com/MR-GREEN1337/Thoth-sub001/internal/model"
	"github.com/MR-GREEN1337/Thoth-sub001/internal/repository"
	pkgerrors "github.com/MR-GREEN1337/Thoth-sub001/pkg/errors"
)

// ── Mock UserRepository ──

type mockUserRepo struct {
	mu    sync.Mutex
	users map[string]*model.User
	seq   int
}

func newMockUserRepo() *mockUserRepo {
	return &mockUserRepo{users: make(map[string]*model.User)}
}

func (m *mockUserRepo) Create(_ context.Context, user *model.User) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, u := range m.users {
		if u.Email == user.Email {
			return gorm.ErrDuplicatedKey
		}
	}
	if user.UserID == "" {
		m.seq++
		user.UserID = fmt.Sprintf("user-%d", m.seq)
	}
	cp := *user
	m.users[user.UserID] = &cp
	return nil
}

func (m *mockUserRepo) GetByID(_ context.Context, id string) (*model.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if u, ok := m.users[id]; ok {
		cp := *u
		return &cp, nil
	}
	return nil, gorm.ErrRecordNotFound
}

func (m *mockUserRepo) GetByEmail(_ context.Context, email string) (*model.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, u := range m.users {
		if u.Email == email {
			cp := *u
			return &cp, nil
		}
	}
	return nil, gorm.ErrRecordNotFound
}

// ── Mock ModuleRepository ──

type mockModuleRepo struct {
	mu      sync.Mutex
	modules []model.Module
	seq     int
	failErr error // 注入：下一次 BatchCreate 失败
}

func newMockModuleRepo() *mockModuleRepo {
	return &mockModuleRepo{}
}

func (m *mockModuleRepo) BatchCreate(_ context.Context, modules []model.Module) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.failErr != nil {
		err := m.failErr
		m.failErr = nil
		return err
	}
	for i := range modules {
		if modules[i].ModuleID == "" {
			m.seq++
			modules[i].ModuleID = fmt.Sprintf("mod-%d", m.seq)
		}
		m.modules = append(m.modules, modules[i])
	}
	return nil
}

func (m *mockModuleRepo) ListByCourse(_ context.Context, courseID string) ([]model.Module, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var result []model.Module
	for _, mod := range m.modules {
		if mod.CourseID == courseID {
			result = append(result, mod)
		}
	}
	sort.SliceStable(result, func(i, j int) bool { return result[i].Position < result[j].Position })
	return result, nil
}

// ── Mock InterestRepository ──

type mockInterestRepo struct {
	mu        sync.Mutex
	interests map[string]*model.Interest // name → interest
	links     map[string][]model.Interest
}

func newMockInterestRepo() *mockInterestRepo {
	return &mockInterestRepo{
		interests: make(map[string]*model.Interest),
		links:     make(map[string][]model.Interest),
	}
}

func (m *mockInterestRepo) GetOrCreateByName(_ context.Context, name string) (*model.Interest, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if i, ok := m.interests[name]; ok {
		cp := *i
		return &cp, nil
	}
	interest := &model.Interest{InterestID: "interest-" + name, Name: name}
	m.interests[name] = interest
	cp := *interest
	return &cp, nil
}

func (m *mockInterestRepo) ListByCourse(_ context.Context, courseID string) ([]model.Interest, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]model.Interest(nil), m.links[courseID]...), nil
}

func (m *mockInterestRepo) AttachToCourse(_ context.Context, courseID string, interests []model.Interest) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.links[courseID] = append(m.links[courseID], interests...)
	return nil
}

// ── Mock ForkEdgeRepository ──

type mockForkEdgeRepo struct {
	mu        sync.Mutex
	edges     []model.ForkEdge // 插入序即 created_at 序
	seq       int
	createErr error // 注入：下一次 Create 失败
}

func newMockForkEdgeRepo() *mockForkEdgeRepo {
	return &mockForkEdgeRepo{}
}

func (m *mockForkEdgeRepo) Create(_ context.Context, edge *model.ForkEdge) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.createErr != nil {
		err := m.createErr
		m.createErr = nil
		return err
	}
	// 唯一约束：forked 唯一；(original, forker) 唯一
	for _, e := range m.edges {
		if e.ForkedCourseID == edge.ForkedCourseID {
			return gorm.ErrDuplicatedKey
		}
		if e.OriginalCourseID == edge.OriginalCourseID && e.ForkerUserID == edge.ForkerUserID {
			return gorm.ErrDuplicatedKey
		}
	}
	if edge.ForkEdgeID == "" {
		m.seq++
		edge.ForkEdgeID = fmt.Sprintf("edge-%d", m.seq)
	}
	if edge.CreatedAt.IsZero() {
		edge.CreatedAt = time.Now()
	}
	m.edges = append(m.edges, *edge)
	return nil
}

func (m *mockForkEdgeRepo) GetByForked(ctx context.Context, forkedCourseID string) (*model.ForkEdge, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, e := range m.edges {
		if e.ForkedCourseID == forkedCourseID {
			cp := e
			return &cp, nil
		}
	}
	return nil, gorm.ErrRecordNotFound
}

func (m *mockForkEdgeRepo) ListByOriginal(ctx context.Context, originalCourseID string) ([]model.ForkEdge, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	var result []model.ForkEdge
	for _, e := range m.edges {
		if e.OriginalCourseID == originalCourseID {
			result = append(result, e)
		}
	}
	return result, nil
}

func (m *mockForkEdgeRepo) Find(_ context.Context, originalCourseID, forkerUserID string) (*model.ForkEdge, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, e := range m.edges {
		if e.OriginalCourseID == originalCourseID && e.ForkerUserID == forkerUserID {
			cp := e
			return &cp, nil
		}
	}
	return nil, gorm.ErrRecordNotFound
}

func (m *mockForkEdgeRepo) CountByOriginal(_ context.Context, originalCourseID string) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var count int64
	for _, e := range m.edges {
		if e.OriginalCourseID == originalCourseID {
			count++
		}
	}
	return count, nil
}

// ── Mock CourseRepository ──
//
// GetByID 的预加载语义通过共享其他 mock 的数据实现

type mockCourseRepo struct {
	mu      sync.Mutex
	courses map[string]*model.Course
	order   []string // 插入序
	seq     int

	users     *mockUserRepo
	modules   *mockModuleRepo
	interests *mockInterestRepo
}

func newMockCourseRepo(users *mockUserRepo, modules *mockModuleRepo, interests *mockInterestRepo) *mockCourseRepo {
	return &mockCourseRepo{
		courses:   make(map[string]*model.Course),
		users:     users,
		modules:   modules,
		interests: interests,
	}
}

func (m *mockCourseRepo) Create(_ context.Context, course *model.Course) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if course.CourseID == "" {
		m.seq++
		course.CourseID = fmt.Sprintf("course-%d", m.seq)
	}
	if course.Version == 0 {
		course.Version = 1
	}
	cp := *course
	cp.Modules = nil
	cp.Interests = nil
	cp.Author = nil
	m.courses[course.CourseID] = &cp
	m.order = append(m.order, course.CourseID)
	return nil
}

func (m *mockCourseRepo) get(id string) (*model.Course, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	c, ok := m.courses[id]
	if !ok {
		return nil, false
	}
	cp := *c
	return &cp, true
}

func (m *mockCourseRepo) GetByID(ctx context.Context, id string) (*model.Course, error) {
	course, ok := m.get(id)
	if !ok {
		return nil, gorm.ErrRecordNotFound
	}
	if author, err := m.users.GetByID(ctx, course.AuthorID); err == nil {
		course.Author = author
	}
	mods, _ := m.modules.ListByCourse(ctx, id)
	course.Modules = mods
	ints, _ := m.interests.ListByCourse(ctx, id)
	course.Interests = ints
	return course, nil
}

func (m *mockCourseRepo) GetWithAuthor(ctx context.Context, id string) (*model.Course, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	course, ok := m.get(id)
	if !ok {
		return nil, gorm.ErrRecordNotFound
	}
	if author, err := m.users.GetByID(ctx, course.AuthorID); err == nil {
		course.Author = author
	}
	return course, nil
}

func (m *mockCourseRepo) Exists(_ context.Context, id string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	_, ok := m.courses[id]
	return ok, nil
}

func (m *mockCourseRepo) ListPublished(ctx context.Context, offset, limit int) ([]model.Course, int64, error) {
	m.mu.Lock()
	ids := make([]string, 0)
	for _, id := range m.order {
		if c, ok := m.courses[id]; ok && c.Status == model.CourseStatusPublished {
			ids = append(ids, id)
		}
	}
	m.mu.Unlock()

	total := int64(len(ids))
	if offset >= len(ids) {
		return nil, total, nil
	}
	end := offset + limit
	if end > len(ids) {
		end = len(ids)
	}

	var result []model.Course
	for _, id := range ids[offset:end] {
		c, err := m.GetWithAuthor(ctx, id)
		if err != nil {
			continue
		}
		result = append(result, *c)
	}
	return result, total, nil
}

func (m *mockCourseRepo) ListByAuthor(ctx context.Context, authorID string) ([]model.Course, error) {
	m.mu.Lock()
	ids := make([]string, 0)
	for _, id := range m.order {
		if c, ok := m.courses[id]; ok && c.AuthorID == authorID {
			ids = append(ids, id)
		}
	}
	m.mu.Unlock()

	var result []model.Course
	for _, id := range ids {
		c, err := m.GetWithAuthor(ctx, id)
		if err != nil {
			continue
		}
		result = append(result, *c)
	}
	return result, nil
}

func (m *mockCourseRepo) CountByAuthor(_ context.Context, authorID string) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var count int64
	for _, c := range m.courses {
		if c.AuthorID == authorID {
			count++
		}
	}
	return count, nil
}

func (m *mockCourseRepo) Update(_ context.Context, course *model.Course) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	existing, ok := m.courses[course.CourseID]
	if !ok {
		return gorm.ErrRecordNotFound
	}
	if existing.Version != course.Version {
		return pkgerrors.ErrOptimisticLock
	}
	cp := *course
	cp.Version = course.Version + 1
	cp.Modules = nil
	cp.Interests = nil
	cp.Author = nil
	m.courses[course.CourseID] = &cp
	course.Version = cp.Version
	return nil
}

func (m *mockCourseRepo) Delete(_ context.Context, id string, _ string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.courses[id]; !ok {
		return gorm.ErrRecordNotFound
	}
	delete(m.courses, id)
	return nil
}

// ── Mock AtomicRunner ──
//
// 快照/恢复模拟事务回滚；互斥锁模拟可串行化隔离：
// 同一时刻只有一个原子单元在执行，单元内的唯一性检查因此是可靠的

type mockAtomicRunner struct {
	mu   sync.Mutex
	repo *repository.Repository

	users     *mockUserRepo
	courses   *mockCourseRepo
	modules   *mockModuleRepo
	edges     *mockForkEdgeRepo
	interests *mockInterestRepo

	forceTimeout bool // 注入：下一个单元直接按超时失败
}

type mockSnapshot struct {
	users       map[string]*model.User
	courses     map[string]*model.Course
	courseOrder []string
	modules     []model.Module
	edges       []model.ForkEdge
	links       map[string][]model.Interest
}

// lockStores 获取全部底层 mock 的锁（固定顺序，避免死锁）
func (r *mockAtomicRunner) lockStores() {
	r.users.mu.Lock()
	r.courses.mu.Lock()
	r.modules.mu.Lock()
	r.edges.mu.Lock()
	r.interests.mu.Lock()
}

func (r *mockAtomicRunner) unlockStores() {
	r.interests.mu.Unlock()
	r.edges.mu.Unlock()
	r.modules.mu.Unlock()
	r.courses.mu.Unlock()
	r.users.mu.Unlock()
}

func (r *mockAtomicRunner) snapshot() *mockSnapshot {
	r.lockStores()
	defer r.unlockStores()

	snap := &mockSnapshot{
		users:   make(map[string]*model.User, len(r.users.users)),
		courses: make(map[string]*model.Course, len(r.courses.courses)),
		links:   make(map[string][]model.Interest, len(r.interests.links)),
	}
	for k, v := range r.users.users {
		cp := *v
		snap.users[k] = &cp
	}
	for k, v := range r.courses.courses {
		cp := *v
		snap.courses[k] = &cp
	}
	snap.courseOrder = append([]string(nil), r.courses.order...)
	snap.modules = append([]model.Module(nil), r.modules.modules...)
	snap.edges = append([]model.ForkEdge(nil), r.edges.edges...)
	for k, v := range r.interests.links {
		snap.links[k] = append([]model.Interest(nil), v...)
	}
	return snap
}

func (r *mockAtomicRunner) restore(snap *mockSnapshot) {
	r.lockStores()
	defer r.unlockStores()

	r.users.users = snap.users
	r.courses.courses = snap.courses
	r.courses.order = snap.courseOrder
	r.modules.modules = snap.modules
	r.edges.edges = snap.edges
	r.interests.links = snap.links
}

func (r *mockAtomicRunner) RunAtomic(_ context.Context, fn func(txRepo *repository.Repository) error) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.forceTimeout {
		r.forceTimeout = false
		return pkgerrors.ErrTransactionTimeout
	}

	snap := r.snapshot()
	if err := fn(r.repo); err != nil {
		r.restore(snap)
		return err
	}
	return nil
}

// ── 测试环境组装 ──

type testEnv struct {
	repo      *repository.Repository
	users     *mockUserRepo
	courses   *mockCourseRepo
	modules   *mockModuleRepo
	edges     *mockForkEdgeRepo
	interests *mockInterestRepo
	runner    *mockAtomicRunner
}

func newTestEnv() *testEnv {
	users := newMockUserRepo()
	modules := newMockModuleRepo()
	interests := newMockInterestRepo()
	courses := newMockCourseRepo(users, modules, interests)
	edges := newMockForkEdgeRepo()

	repo := &repository.Repository{
		User:     users,
		Course:   courses,
		Module:   modules,
		ForkEdge: edges,
		Interest: interests,
	}
	runner := &mockAtomicRunner{
		repo:      repo,
		users:     users,
		courses:   courses,
		modules:   modules,
		edges:     edges,
		interests: interests,
	}
	repo.Atomic = runner

	return &testEnv{
		repo:      repo,
		users:     users,
		courses:   courses,
		modules:   modules,
		edges:     edges,
		interests: interests,
		runner:    runner,
	}
}

// ── 数据装配辅助 ──

func (e *testEnv) addUser(id, name string) {
	e.users.users[id] = &model.User{UserID: id, Name: name, Email: id + "@test.local", Role: "user"}
}

func (e *testEnv) addCourse(id, authorID, title string) *model.Course {
	course := &model.Course{
		CourseID: id,
		Title:    title,
		Status:   model.CourseStatusPublished,
		AuthorID: authorID,
	}
	course.Version = 1
	e.courses.courses[id] = course
	e.courses.order = append(e.courses.order, id)
	return course
}

func (e *testEnv) addModule(courseID, title string, position, duration int, aiGenerated bool) {
	e.modules.seq++
	e.modules.modules = append(e.modules.modules, model.Module{
		ModuleID:        fmt.Sprintf("mod-%d", e.modules.seq),
		CourseID:        courseID,
		Title:           title,
		Position:        position,
		DurationMinutes: duration,
		IsAIGenerated:   aiGenerated,
	})
}

func (e *testEnv) addEdge(originalID, forkedID, forkerID string) {
	e.edges.seq++
	e.edges.edges = append(e.edges.edges, model.ForkEdge{
		ForkEdgeID:       fmt.Sprintf("edge-%d", e.edges.seq),
		OriginalCourseID: originalID,
		ForkedCourseID:   forkedID,
		ForkerUserID:     forkerID,
		CreatedAt:        time.Now(),
	})
}
