package service

import (
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	ics "github.com/arran4/golang-ical"
)

// ── ICS 解析器 ──────────────────────────────────────────────
//
// 将 iCalendar (RFC 5545) 课程日历解析为每周固定时段：
//   - SUMMARY 首个词为课程代码（如 "CSC101 Data Structures" / "CSC101: Lecture"）
//   - LOCATION 为教室，缺省为 TBA
//   - DTSTART/DTEND 决定星期与起止时间，缺 DTEND 时使用 DURATION
//   - 同一课程同一星期同一时间同一教室的多个事件（重复课次）合并为一个时段
// ─────────────────────────────────────────────────────────────

const (
	icsMaxFileSize  = 5 * 1024 * 1024 // 5MB
	icsFetchTimeout = 30 * time.Second
	icsDefaultRoom  = "TBA"
)

// parsedSlotEvent ICS 解析中间结构
type parsedSlotEvent struct {
	Summary    string
	CourseCode string
	Room       string
	DayOfWeek  int // 1=Monday … 7=Sunday
	StartTime  string
	EndTime    string
}

// FetchICSContent 从 URL 获取 ICS 内容
func FetchICSContent(rawURL string) (io.ReadCloser, error) {
	// webcal:// → https://
	u := rawURL
	if strings.HasPrefix(u, "webcal://") {
		u = "https://" + strings.TrimPrefix(u, "webcal://")
	}

	client := &http.Client{Timeout: icsFetchTimeout}
	resp, err := client.Get(u)
	if err != nil {
		return nil, fmt.Errorf("获取 ICS 失败: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		resp.Body.Close()
		return nil, fmt.Errorf("获取 ICS 失败: HTTP %d", resp.StatusCode)
	}
	return struct {
		io.Reader
		io.Closer
	}{
		Reader: io.LimitReader(resp.Body, icsMaxFileSize),
		Closer: resp.Body,
	}, nil
}

// ParseICS 解析 ICS 内容为去重后的每周时段
// loc 为校历所在时区，UTC 时间会转换到该时区后再取星期与时刻
func ParseICS(reader io.Reader, loc *time.Location) ([]parsedSlotEvent, error) {
	cal, err := ics.ParseCalendar(io.LimitReader(reader, icsMaxFileSize))
	if err != nil {
		return nil, fmt.Errorf("ICS 格式解析失败: %w", err)
	}
	if loc == nil {
		loc = time.UTC
	}

	var events []parsedSlotEvent
	for _, comp := range cal.Events() {
		evt, ok := parseVEvent(comp, loc)
		if !ok {
			continue
		}
		events = append(events, evt)
	}
	return mergeEvents(events), nil
}

// parseVEvent 解析单个 VEVENT 组件
func parseVEvent(evt *ics.VEvent, loc *time.Location) (parsedSlotEvent, bool) {
	summary := evt.GetProperty(ics.ComponentPropertySummary)
	if summary == nil || strings.TrimSpace(summary.Value) == "" {
		return parsedSlotEvent{}, false
	}
	name := strings.TrimSpace(summary.Value)
	code := courseCodeFromSummary(name)
	if code == "" {
		return parsedSlotEvent{}, false
	}

	dtStart, err := parseICSDateTime(evt, ics.ComponentPropertyDtStart, loc)
	if err != nil {
		return parsedSlotEvent{}, false
	}
	dtEnd, err := parseICSDateTime(evt, ics.ComponentPropertyDtEnd, loc)
	if err != nil {
		durProp := evt.GetProperty(ics.ComponentProperty(ics.PropertyDuration))
		if durProp == nil {
			return parsedSlotEvent{}, false
		}
		d, err := parseICSDuration(durProp.Value)
		if err != nil {
			return parsedSlotEvent{}, false
		}
		dtEnd = dtStart.Add(d)
	}
	// 跨天事件不是课表时段
	if dtEnd.YearDay() != dtStart.YearDay() || dtEnd.Year() != dtStart.Year() {
		return parsedSlotEvent{}, false
	}

	room := icsDefaultRoom
	if p := evt.GetProperty(ics.ComponentPropertyLocation); p != nil && strings.TrimSpace(p.Value) != "" {
		room = strings.TrimSpace(p.Value)
	}
	if len(room) > 50 {
		room = room[:50]
	}

	return parsedSlotEvent{
		Summary:    name,
		CourseCode: code,
		Room:       room,
		DayOfWeek:  goWeekdayToISO(dtStart.Weekday()),
		StartTime:  dtStart.Format("15:04"),
		EndTime:    dtEnd.Format("15:04"),
	}, true
}

// courseCodeFromSummary 取 SUMMARY 首个词作为课程代码（大写）
func courseCodeFromSummary(summary string) string {
	fields := strings.FieldsFunc(summary, func(r rune) bool {
		return r == ' ' || r == ':' || r == '-' || r == '\t' || r == '|'
	})
	if len(fields) == 0 {
		return ""
	}
	return strings.ToUpper(fields[0])
}

// mergeEvents 合并重复课次
func mergeEvents(events []parsedSlotEvent) []parsedSlotEvent {
	type key struct {
		Code      string
		DayOfWeek int
		StartTime string
		EndTime   string
		Room      string
	}
	seen := make(map[key]bool)
	result := make([]parsedSlotEvent, 0, len(events))

	for _, e := range events {
		k := key{Code: e.CourseCode, DayOfWeek: e.DayOfWeek, StartTime: e.StartTime, EndTime: e.EndTime, Room: e.Room}
		if seen[k] {
			continue
		}
		seen[k] = true
		result = append(result, e)
	}
	return result
}

// ── 辅助函数 ──

// goWeekdayToISO 将 Go 的 time.Weekday (0=Sunday) 转为 ISO 8601 (1=Monday … 7=Sunday)
func goWeekdayToISO(wd time.Weekday) int {
	if wd == time.Sunday {
		return 7
	}
	return int(wd)
}

// parseICSDuration 解析形如 PT1H30M 的时长（只支持时/分/秒）
func parseICSDuration(v string) (time.Duration, error) {
	v = strings.ToUpper(strings.TrimSpace(v))
	if !strings.HasPrefix(v, "PT") {
		return 0, fmt.Errorf("不支持的 DURATION: %s", v)
	}
	return time.ParseDuration(strings.ToLower(strings.TrimPrefix(v, "PT")))
}

// parseICSDateTime 从 VEVENT 中解析日期时间属性
func parseICSDateTime(evt *ics.VEvent, propName ics.ComponentProperty, loc *time.Location) (time.Time, error) {
	prop := evt.GetProperty(propName)
	if prop == nil {
		return time.Time{}, fmt.Errorf("missing property %s", propName)
	}
	val := prop.Value

	// 全天事件（仅日期）不是课表时段
	layouts := []string{
		"20060102T150405Z",
		"20060102T150405",
	}

	tzid := ""
	for k, v := range prop.ICalParameters {
		if strings.ToUpper(k) == "TZID" && len(v) > 0 {
			tzid = v[0]
		}
	}

	for _, layout := range layouts {
		t, err := time.Parse(layout, val)
		if err != nil {
			continue
		}
		if strings.HasSuffix(layout, "Z") {
			return t.In(loc), nil
		}
		if tzid != "" {
			if tzLoc, err := time.LoadLocation(tzid); err == nil {
				return time.Date(t.Year(), t.Month(), t.Day(), t.Hour(), t.Minute(), t.Second(), 0, tzLoc).In(loc), nil
			}
		}
		return time.Date(t.Year(), t.Month(), t.Day(), t.Hour(), t.Minute(), t.Second(), 0, loc), nil
	}

	return time.Time{}, fmt.Errorf("无法解析日期: %s", val)
}
