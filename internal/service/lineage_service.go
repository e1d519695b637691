package service

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
	"gorm.io/gorm"

	"github.com/MR-GREEN1337/Thoth-sub001/internal/dto"
	"github.com/MR-GREEN1337/Thoth-sub001/internal/repository"
	pkgerrors "github.com/MR-GREEN1337/Thoth-sub001/pkg/errors"
)

// ── 血缘模块业务错误 ──

var ErrCourseNotFound = errors.New("课程不存在")

// maxLineageFetchWorkers 单次树构建的并发取数上限
const maxLineageFetchWorkers = 8

// LineageService 血缘业务接口
//
// 设计说明：
//   - 树是每次请求重建的一次性投影，不缓存、不增量更新
//   - 环与重复引用是数据损坏而非预期状态：防御性截断并告警，
//     绝不向调用方抛错、绝不无界递归
//   - 展开采用显式 frontier + 访问集（按调用独立），不用语言级递归
type LineageService interface {
	// FindRoot 解析任意课程的血缘根祖先
	FindRoot(ctx context.Context, courseID string) (*dto.LineageRootResponse, error)
	// BuildTree 从根重建完整后代树并计算派生指标
	BuildTree(ctx context.Context, rootCourseID string) (*dto.LineageTreeResponse, error)
}

type lineageService struct {
	repo   *repository.Repository
	logger *zap.Logger
}

// NewLineageService 创建 LineageService 实例
func NewLineageService(repo *repository.Repository, logger *zap.Logger) LineageService {
	return &lineageService{repo: repo, logger: logger}
}

// ────────────────────── FindRoot ──────────────────────

// FindRoot 沿父指针上溯：每门课程至多一条入边，因此是链表遍历而非搜索。
// 访问集防环：一旦标识符重复立即终止，返回最后已知节点作为尽力根
func (s *lineageService) FindRoot(ctx context.Context, courseID string) (*dto.LineageRootResponse, error) {
	exists, err := s.repo.Course.Exists(ctx, courseID)
	if err != nil {
		s.logger.Error("查询课程失败", zap.String("course_id", courseID), zap.Error(err))
		return nil, wrapRepoErr(err)
	}
	if !exists {
		return nil, ErrCourseNotFound
	}

	current := courseID
	visited := map[string]bool{courseID: true}

	for {
		edge, err := s.repo.ForkEdge.GetByForked(ctx, current)
		if errors.Is(err, gorm.ErrRecordNotFound) {
			break // 无入边，current 即根
		}
		if err != nil {
			s.logger.Error("查询血缘边失败", zap.String("course_id", current), zap.Error(err))
			return nil, wrapRepoErr(err)
		}

		next := edge.OriginalCourseID
		if visited[next] {
			// 数据损坏：血缘链成环。截断并返回最后已知节点
			s.logger.Warn("血缘链检测到环，提前终止上溯",
				zap.String("start", courseID),
				zap.String("repeated", next),
			)
			break
		}
		visited[next] = true
		current = next
	}

	return &dto.LineageRootResponse{
		CourseID:     courseID,
		RootCourseID: current,
	}, nil
}

// ────────────────────── BuildTree ──────────────────────

// lineageRecord 树节点的扁平记录（arena 内部表示）
type lineageRecord struct {
	id          string
	title       string
	description string
	authorName  string
}

// lineageArena 单次构建的标识符集与邻接表
// visited 按整棵树去重：血缘图按构造入度至多为 1，重复标识符只可能来自
// 损坏数据（环或多父），一律截断
type lineageArena struct {
	mu       sync.Mutex
	visited  map[string]bool
	records  map[string]*lineageRecord
	children map[string][]string
}

func newLineageArena() *lineageArena {
	return &lineageArena{
		visited:  make(map[string]bool),
		records:  make(map[string]*lineageRecord),
		children: make(map[string][]string),
	}
}

// claim 认领标识符；已被认领返回 false（环/重复引用防御）
func (a *lineageArena) claim(id string) bool {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.visited[id] {
		return false
	}
	a.visited[id] = true
	return true
}

func (a *lineageArena) put(rec *lineageRecord) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.records[rec.id] = rec
}

func (a *lineageArena) appendChildren(parentID string, childIDs []string) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.children[parentID] = append(a.children[parentID], childIDs...)
}

func (s *lineageService) BuildTree(ctx context.Context, rootCourseID string) (*dto.LineageTreeResponse, error) {
	root, err := s.repo.Course.GetWithAuthor(ctx, rootCourseID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrCourseNotFound
		}
		s.logger.Error("查询根课程失败", zap.String("course_id", rootCourseID), zap.Error(err))
		return nil, wrapRepoErr(err)
	}

	arena := newLineageArena()
	arena.claim(rootCourseID)
	arena.put(s.toLineageRecord(root.CourseID, root.Title, root.Description, authorName(root.Author)))

	// ── 逐层展开：同层各父节点的取数并发执行，汇合后再进入下一层 ──
	frontier := []string{rootCourseID}
	depth := 0

	for level := 0; len(frontier) > 0; level++ {
		expanded, err := s.expandFrontier(ctx, arena, frontier)
		if err != nil {
			return nil, err
		}

		next := make([]string, 0)
		for _, childIDs := range expanded {
			next = append(next, childIDs...)
		}
		if len(next) > 0 {
			depth = level + 1
		}
		frontier = next
	}

	tree, totalForks := assembleTree(arena, rootCourseID)

	return &dto.LineageTreeResponse{
		Tree: tree,
		Metadata: dto.LineageMetadata{
			TotalForks:  totalForks,
			Depth:       depth,
			GeneratedAt: time.Now().UTC().Format(time.RFC3339),
		},
	}, nil
}

// expandFrontier 并发展开一层 frontier
// 返回值与 frontier 同序：expanded[i] 是 frontier[i] 实际采纳的子节点列表。
// 单个父节点的边顺序由存储返回顺序决定并原样保留；
// 取消（ctx）会停止继续发起取数，已发起的结果被整体丢弃
func (s *lineageService) expandFrontier(ctx context.Context, arena *lineageArena, frontier []string) ([][]string, error) {
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(maxLineageFetchWorkers)

	expanded := make([][]string, len(frontier))

	for i, parentID := range frontier {
		i, parentID := i, parentID
		g.Go(func() error {
			edges, err := s.repo.ForkEdge.ListByOriginal(gctx, parentID)
			if err != nil {
				return err
			}

			accepted := make([]string, 0, len(edges))
			for _, edge := range edges {
				childID := edge.ForkedCourseID

				if !arena.claim(childID) {
					// 环或重复引用：按叶子截断，不再展开
					s.logger.Warn("血缘树检测到重复标识符，截断展开",
						zap.String("parent", parentID),
						zap.String("child", childID),
					)
					continue
				}

				child, err := s.repo.Course.GetWithAuthor(gctx, childID)
				if errors.Is(err, gorm.ErrRecordNotFound) {
					continue // 悬挂边：课程已删除，静默省略该子树
				}
				if err != nil {
					return err
				}

				arena.put(s.toLineageRecord(child.CourseID, child.Title, child.Description, authorName(child.Author)))
				accepted = append(accepted, childID)
			}

			arena.appendChildren(parentID, accepted)
			expanded[i] = accepted
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		s.logger.Error("血缘树展开失败", zap.Error(err))
		return nil, wrapRepoErr(err)
	}
	return expanded, nil
}

// assembleTree 从 arena 邻接表自顶向下组装树（显式栈，不递归）
// 返回树根与后代总数（不含根）
func assembleTree(arena *lineageArena, rootID string) (*dto.LineageNode, int) {
	nodes := make(map[string]*dto.LineageNode, len(arena.records))
	for id, rec := range arena.records {
		nodes[id] = &dto.LineageNode{
			CourseID:    rec.id,
			Title:       rec.title,
			Description: rec.description,
			AuthorName:  rec.authorName,
			Children:    []*dto.LineageNode{},
		}
	}

	stack := []string{rootID}
	for len(stack) > 0 {
		id := stack[len(stack)-1]
		stack = stack[:len(stack)-1]

		for _, childID := range arena.children[id] {
			nodes[id].Children = append(nodes[id].Children, nodes[childID])
			stack = append(stack, childID)
		}
	}

	return nodes[rootID], len(nodes) - 1
}

// ── 内部辅助方法 ──

func (s *lineageService) toLineageRecord(id, title, description, author string) *lineageRecord {
	return &lineageRecord{
		id:          id,
		title:       title,
		description: description,
		authorName:  author,
	}
}

// wrapRepoErr 将底层存储错误标记为 RepositoryError；context 取消原样透传
func wrapRepoErr(err error) error {
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return err
	}
	return fmt.Errorf("%w: %v", pkgerrors.ErrRepository, err)
}
