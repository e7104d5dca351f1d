package service

import (
	"errors"
	"fmt"
	"strconv"
	"strings"

	"bu-reg/backend/internal/model"
)

// ── 选课准入规则（纯函数，无 I/O） ──

var (
	ErrCourseCreditsTooLow = errors.New("课程学分低于最低要求")
	ErrCreditLimitExceeded = errors.New("本学期学分超出上限")
	ErrInvalidClock        = errors.New("时间格式无效，应为 HH:MM")
	ErrUploadCourseMissing = errors.New("选课明细缺少课程信息")
)

// CreditLimits 学分上下限
type CreditLimits struct {
	MinCourseCredits int // 单门课程最低学分
	MaxTermCredits   int // 单学期累计最高学分
}

// CheckCreditAdmission 判断候选课程能否加入
// existing 为该学生本学期 PENDING + APPROVED 课程的学分
func CheckCreditAdmission(existing []int, candidate int, limits CreditLimits) error {
	if candidate < limits.MinCourseCredits {
		return ErrCourseCreditsTooLow
	}
	total := candidate
	for _, c := range existing {
		total += c
	}
	if total > limits.MaxTermCredits {
		return ErrCreditLimitExceeded
	}
	return nil
}

// CountedCredits 提取计入学分上限的课程学分（REJECTED 不计入）
// 未加载到课程的明细返回 ErrUploadCourseMissing，不静默跳过
func CountedCredits(uploads []model.CourseUpload) ([]int, error) {
	credits := make([]int, 0, len(uploads))
	for _, u := range uploads {
		if u.Status == model.StatusRejected {
			continue
		}
		if u.Course == nil {
			return nil, fmt.Errorf("%w: upload=%s course=%s", ErrUploadCourseMissing, u.CourseUploadID, u.CourseID)
		}
		credits = append(credits, u.Course.Credits)
	}
	return credits, nil
}

// IsDuplicateUpload 同一学生同一学期同一课程视为重复，不区分状态
func IsDuplicateUpload(existing []model.CourseUpload, studentID, semesterID, courseID string) bool {
	for _, u := range existing {
		if u.StudentID == studentID && u.SemesterID == semesterID && u.CourseID == courseID {
			return true
		}
	}
	return false
}

// DeriveRegistrationStatus 由课程审批状态汇总注册状态
// 全部 APPROVED（且非空）→ APPROVED；存在 PENDING 或为空 → PENDING；其余 → REJECTED
func DeriveRegistrationStatus(statuses []string) string {
	if len(statuses) == 0 {
		return model.StatusPending
	}
	allApproved := true
	for _, s := range statuses {
		switch s {
		case model.StatusPending:
			return model.StatusPending
		case model.StatusApproved:
		default:
			allApproved = false
		}
	}
	if allApproved {
		return model.StatusApproved
	}
	return model.StatusRejected
}

// ── 课表时段 ──

// ClockRange 一天内的半开区间 [Start, End)，单位：分钟
type ClockRange struct {
	Start int
	End   int
}

// ParseClock 解析 "HH:MM" 或 "HH:MM:SS"（数据库 TIME 列的返回格式）为当天分钟数
func ParseClock(s string) (int, error) {
	parts := strings.Split(s, ":")
	if len(parts) != 2 && len(parts) != 3 {
		return 0, ErrInvalidClock
	}
	h, err := strconv.Atoi(parts[0])
	if err != nil || len(parts[0]) != 2 || h < 0 || h > 23 {
		return 0, ErrInvalidClock
	}
	m, err := strconv.Atoi(parts[1])
	if err != nil || len(parts[1]) != 2 || m < 0 || m > 59 {
		return 0, ErrInvalidClock
	}
	if len(parts) == 3 {
		sec, err := strconv.Atoi(parts[2])
		if err != nil || len(parts[2]) != 2 || sec < 0 || sec > 59 {
			return 0, ErrInvalidClock
		}
	}
	return h*60 + m, nil
}

// FormatClock 分钟数 → "HH:MM"
func FormatClock(minutes int) string {
	return fmt.Sprintf("%02d:%02d", minutes/60, minutes%60)
}

// NormalizeClock 将 "HH:MM:SS" 规范化为 "HH:MM"
func NormalizeClock(s string) string {
	m, err := ParseClock(s)
	if err != nil {
		return s
	}
	return FormatClock(m)
}

// ParseClockRange 解析并校验 start < end
func ParseClockRange(start, end string) (ClockRange, error) {
	s, err := ParseClock(start)
	if err != nil {
		return ClockRange{}, err
	}
	e, err := ParseClock(end)
	if err != nil {
		return ClockRange{}, err
	}
	if e <= s {
		return ClockRange{}, ErrInvalidTimeRange
	}
	return ClockRange{Start: s, End: e}, nil
}

// Overlaps 半开区间相交判断，首尾相接不算冲突
func (a ClockRange) Overlaps(b ClockRange) bool {
	return a.Start < b.End && b.Start < a.End
}

// FindSlotConflict 在已有时段中查找同一天且与候选区间相交的时段
// excludeID 用于更新时排除自身；无法解析的已有时段被忽略
func FindSlotConflict(dayOfWeek int, candidate ClockRange, existing []model.TimetableSlot, excludeID string) *model.TimetableSlot {
	for i := range existing {
		slot := &existing[i]
		if slot.DayOfWeek != dayOfWeek {
			continue
		}
		if excludeID != "" && slot.SlotID == excludeID {
			continue
		}
		r, err := ParseClockRange(slot.StartTime, slot.EndTime)
		if err != nil {
			continue
		}
		if candidate.Overlaps(r) {
			return slot
		}
	}
	return nil
}
