package service

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"time"

	ics "github.com/arran4/golang-ical"
	"github.com/google/uuid"
	"github.com/xuri/excelize/v2"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/MR-GREEN1337/Thoth-sub001/internal/dto"
	"github.com/MR-GREEN1337/Thoth-sub001/internal/repository"
)

// ── 导出模块业务错误 ──

var (
	ErrExportNoModules    = errors.New("课程没有模块，无法生成学习计划")
	ErrExportGenerateFail = errors.New("生成导出文件失败")
)

// ExportService 导出业务接口
//
// 设计说明：
//   - 学习计划导出为 iCalendar (.ics)：每个模块一个事件，按模块顺序
//     从起始日起逐日排布
//   - 血缘报表导出为 Excel (.xlsx)：整棵后代树的扁平化清单
//   - 导出以字节缓冲返回，由 Handler 层设置 HTTP 响应头后写入
type ExportService interface {
	// ExportStudyPlan 导出课程学习计划为 ICS 日历
	ExportStudyPlan(ctx context.Context, courseID string, startDate time.Time) (*bytes.Buffer, string, error)
	// ExportLineageReport 导出血缘树报表为 Excel
	ExportLineageReport(ctx context.Context, rootCourseID string) (*bytes.Buffer, string, error)
}

type exportService struct {
	repo    *repository.Repository
	lineage LineageService
	logger  *zap.Logger
}

// NewExportService 创建 ExportService 实例
func NewExportService(repo *repository.Repository, lineage LineageService, logger *zap.Logger) ExportService {
	return &exportService{repo: repo, lineage: lineage, logger: logger}
}

// ═══════════════════════════════════════════════════════════
// ExportStudyPlan — 导出学习计划为 ICS
// ═══════════════════════════════════════════════════════════
//
// 排布规则：
//   - 第 i 个模块排在 startDate + i 天，09:00 UTC 开始
//   - 时长取模块 duration_minutes，缺省 60 分钟

func (s *exportService) ExportStudyPlan(ctx context.Context, courseID string, startDate time.Time) (*bytes.Buffer, string, error) {
	course, err := s.repo.Course.GetByID(ctx, courseID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, "", ErrCourseNotFound
		}
		s.logger.Error("查询课程失败", zap.String("id", courseID), zap.Error(err))
		return nil, "", wrapRepoErr(err)
	}
	if len(course.Modules) == 0 {
		return nil, "", ErrExportNoModules
	}

	cal := ics.NewCalendar()
	cal.SetMethod(ics.MethodPublish)
	cal.SetProductId("-//thoth//study-plan//EN")

	day := time.Date(startDate.Year(), startDate.Month(), startDate.Day(), 9, 0, 0, 0, time.UTC)
	now := time.Now().UTC()

	for i, m := range course.Modules {
		duration := time.Duration(m.DurationMinutes) * time.Minute
		if duration <= 0 {
			duration = time.Hour
		}
		start := day.AddDate(0, 0, i)

		event := cal.AddEvent(uuid.New().String())
		event.SetCreatedTime(now)
		event.SetDtStampTime(now)
		event.SetStartAt(start)
		event.SetEndAt(start.Add(duration))
		event.SetSummary(fmt.Sprintf("%s — %s", course.Title, m.Title))
		if m.Content != "" {
			event.SetDescription(m.Content)
		}
	}

	buf := bytes.NewBufferString(cal.Serialize())
	filename := fmt.Sprintf("study_plan_%s.ics", courseID)
	return buf, filename, nil
}

// ═══════════════════════════════════════════════════════════
// ExportLineageReport — 导出血缘树报表为 Excel
// ═══════════════════════════════════════════════════════════
//
// 输出格式：
//   - 首行表头：层级 / 课程ID / 标题 / 作者 / 直接Fork数
//   - 每个节点一行，先序遍历（显式栈），层级从根的 0 开始
//   - 末尾附派生指标（后代总数、最大深度、生成时间）

func (s *exportService) ExportLineageReport(ctx context.Context, rootCourseID string) (*bytes.Buffer, string, error) {
	result, err := s.lineage.BuildTree(ctx, rootCourseID)
	if err != nil {
		return nil, "", err
	}

	f := excelize.NewFile()
	defer f.Close()

	const sheet = "Lineage"
	if err := f.SetSheetName("Sheet1", sheet); err != nil {
		s.logger.Error("创建工作表失败", zap.Error(err))
		return nil, "", ErrExportGenerateFail
	}

	headers := []string{"层级", "课程ID", "标题", "作者", "直接Fork数"}
	for col, h := range headers {
		cell, _ := excelize.CoordinatesToCellName(col+1, 1)
		if err := f.SetCellValue(sheet, cell, h); err != nil {
			return nil, "", ErrExportGenerateFail
		}
	}

	// 先序遍历：栈中保存 (节点, 层级)
	type frame struct {
		node  *dto.LineageNode
		level int
	}
	stack := []frame{{node: result.Tree, level: 0}}
	row := 2

	for len(stack) > 0 {
		fr := stack[len(stack)-1]
		stack = stack[:len(stack)-1]

		values := []interface{}{
			fr.level,
			fr.node.CourseID,
			fr.node.Title,
			fr.node.AuthorName,
			len(fr.node.Children),
		}
		for col, v := range values {
			cell, _ := excelize.CoordinatesToCellName(col+1, row)
			if err := f.SetCellValue(sheet, cell, v); err != nil {
				return nil, "", ErrExportGenerateFail
			}
		}
		row++

		// 逆序入栈，保证弹出顺序与子节点顺序一致
		for i := len(fr.node.Children) - 1; i >= 0; i-- {
			stack = append(stack, frame{node: fr.node.Children[i], level: fr.level + 1})
		}
	}

	summary := []interface{}{
		"后代总数", result.Metadata.TotalForks,
		"最大深度", result.Metadata.Depth,
		"生成时间", result.Metadata.GeneratedAt,
	}
	row++
	for col, v := range summary {
		cell, _ := excelize.CoordinatesToCellName(col+1, row)
		if err := f.SetCellValue(sheet, cell, v); err != nil {
			return nil, "", ErrExportGenerateFail
		}
	}

	buf, err := f.WriteToBuffer()
	if err != nil {
		s.logger.Error("写出 Excel 失败", zap.Error(err))
		return nil, "", ErrExportGenerateFail
	}

	filename := fmt.Sprintf("lineage_%s.xlsx", rootCourseID)
	return buf, filename, nil
}
