package event

import (
	"encoding/json"
	"fmt"
)

// wireEvent 是事件的线上表示：类型标签 + 具体负载文档。
type wireEvent struct {
	Kind    Kind            `json:"kind"`
	Payload json.RawMessage `json:"payload"`
}

// Encode 将事件序列化为带类型标签的 JSON 文档。
func Encode(evt Event) ([]byte, error) {
	if evt == nil {
		return nil, fmt.Errorf("encode: nil event")
	}
	payload, err := json.Marshal(evt)
	if err != nil {
		return nil, fmt.Errorf("encode %s: %w", evt.Kind(), err)
	}
	return json.Marshal(wireEvent{Kind: evt.Kind(), Payload: payload})
}

// Decode 按类型标签还原事件，信封与类型专有字段全部保留。
func Decode(data []byte) (Event, error) {
	var wire wireEvent
	if err := json.Unmarshal(data, &wire); err != nil {
		return nil, fmt.Errorf("decode: %w", err)
	}

	var evt Event
	switch wire.Kind {
	case KindVideoDiscovered:
		evt = &VideoDiscovered{}
	case KindVideoDownloaded:
		evt = &VideoDownloaded{}
	case KindTranscriptGenerated:
		evt = &TranscriptGenerated{}
	case KindSummaryCreated:
		evt = &SummaryCreated{}
	case KindVideoProcessingError:
		evt = &VideoProcessingError{}
	case KindTranscriptProcessingError:
		evt = &TranscriptProcessingError{}
	case KindSummaryProcessingError:
		evt = &SummaryProcessingError{}
	default:
		return nil, fmt.Errorf("decode: unknown event kind %q", wire.Kind)
	}
	if err := json.Unmarshal(wire.Payload, evt); err != nil {
		return nil, fmt.Errorf("decode %s: %w", wire.Kind, err)
	}
	return evt, nil
}
