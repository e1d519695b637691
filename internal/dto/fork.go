package dto

// ── Fork 模块 DTO ──

// ForkedCourseResponse Fork 成功响应
// Course 为提交后回读的完整新课程（含有序模块与作者名）；
// OriginalForkCount 为源课程提交后的最新 Fork 数
type ForkedCourseResponse struct {
	Course            CourseDetailResponse `json:"course"`
	OriginalCourseID  string               `json:"original_course_id"`
	OriginalForkCount int64                `json:"original_fork_count"`
	ForkedAt          string               `json:"forked_at"`
}
