package transcriber

import (
	"fmt"
	"strings"
	"time"

	"TubeDigest/internal/event"
)

// ParseSRT 把 SRT 字幕转换为纯文本与定时片段。解析采用宽松策略：
// 无法识别的块被跳过而不是报错。
func ParseSRT(content string) (string, []event.TranscriptSegment) {
	var (
		texts    []string
		segments []event.TranscriptSegment
	)

	blocks := strings.Split(strings.ReplaceAll(content, "\r\n", "\n"), "\n\n")
	for _, block := range blocks {
		lines := strings.Split(strings.TrimSpace(block), "\n")
		if len(lines) < 2 {
			continue
		}
		// 第一行是序号，第二行是时间轴，其余是文本
		timeLine := lines[1]
		if !strings.Contains(lines[1], "-->") {
			if !strings.Contains(lines[0], "-->") {
				continue
			}
			timeLine = lines[0]
			lines = append([]string{""}, lines...)
		}
		start, end, err := parseSRTTimeline(timeLine)
		if err != nil {
			continue
		}
		text := strings.TrimSpace(strings.Join(lines[2:], " "))
		if text == "" {
			continue
		}
		texts = append(texts, text)
		segments = append(segments, event.TranscriptSegment{
			Start: start,
			End:   end,
			Text:  text,
		})
	}
	return strings.Join(texts, " "), segments
}

func parseSRTTimeline(line string) (time.Duration, time.Duration, error) {
	parts := strings.Split(line, "-->")
	if len(parts) != 2 {
		return 0, 0, fmt.Errorf("非法时间轴: %s", line)
	}
	start, err := parseSRTTime(strings.TrimSpace(parts[0]))
	if err != nil {
		return 0, 0, err
	}
	end, err := parseSRTTime(strings.TrimSpace(parts[1]))
	if err != nil {
		return 0, 0, err
	}
	return start, end, nil
}

func parseSRTTime(value string) (time.Duration, error) {
	var h, m, s, ms int
	if _, err := fmt.Sscanf(value, "%d:%d:%d,%d", &h, &m, &s, &ms); err != nil {
		return 0, fmt.Errorf("非法时间戳 %q: %w", value, err)
	}
	return time.Duration(h)*time.Hour +
		time.Duration(m)*time.Minute +
		time.Duration(s)*time.Second +
		time.Duration(ms)*time.Millisecond, nil
}
