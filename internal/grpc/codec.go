package server

import (
	"encoding/json"
	"fmt"
	"math"
	"time"

	"google.golang.org/protobuf/types/known/structpb"
)

// rangeRequest is the decoded form of a query payload.
type rangeRequest struct {
	Device          string
	From, To        time.Time
	Channels        []int
	Granularity     string
	IncludeBaseline bool
	Year            int
}

// decodeRequest reads the known fields of a request struct. Times are RFC3339
// strings or unix seconds. Channels may be given as "channel" or "channels".
func decodeRequest(req *structpb.Struct) (rangeRequest, error) {
	var out rangeRequest
	fields := req.GetFields()

	out.Device = fields["device"].GetStringValue()
	out.Granularity = fields["granularity"].GetStringValue()
	out.IncludeBaseline = fields["include_baseline"].GetBoolValue()

	var err error
	if out.From, err = decodeTime(fields["from"]); err != nil {
		return out, fmt.Errorf("from: %w", err)
	}
	if out.To, err = decodeTime(fields["to"]); err != nil {
		return out, fmt.Errorf("to: %w", err)
	}

	if v, ok := fields["year"]; ok {
		year, err := decodeInt(v)
		if err != nil {
			return out, fmt.Errorf("year: %w", err)
		}
		out.Year = year
	}

	if v, ok := fields["channel"]; ok {
		ch, err := decodeInt(v)
		if err != nil {
			return out, fmt.Errorf("channel: %w", err)
		}
		out.Channels = append(out.Channels, ch)
	}
	for _, v := range fields["channels"].GetListValue().GetValues() {
		ch, err := decodeInt(v)
		if err != nil {
			return out, fmt.Errorf("channels: %w", err)
		}
		out.Channels = append(out.Channels, ch)
	}

	return out, nil
}

func decodeTime(v *structpb.Value) (time.Time, error) {
	switch k := v.GetKind().(type) {
	case nil:
		return time.Time{}, nil
	case *structpb.Value_StringValue:
		return time.Parse(time.RFC3339, k.StringValue)
	case *structpb.Value_NumberValue:
		sec, err := decodeInt(v)
		if err != nil {
			return time.Time{}, err
		}
		return time.Unix(int64(sec), 0).UTC(), nil
	default:
		return time.Time{}, fmt.Errorf("unsupported time value")
	}
}

func decodeInt(v *structpb.Value) (int, error) {
	n, ok := v.GetKind().(*structpb.Value_NumberValue)
	if !ok {
		return 0, fmt.Errorf("not a number")
	}
	if n.NumberValue != math.Trunc(n.NumberValue) || math.Abs(n.NumberValue) > 1<<53 {
		return 0, fmt.Errorf("not an integer: %v", n.NumberValue)
	}
	return int(n.NumberValue), nil
}

// encodeResponse wraps v under key as a Struct, going through its JSON form.
func encodeResponse(key string, v interface{}) (*structpb.Struct, error) {
	data, err := json.Marshal(map[string]interface{}{key: v})
	if err != nil {
		return nil, err
	}
	var m map[string]interface{}
	if err := json.Unmarshal(data, &m); err != nil {
		return nil, err
	}
	return structpb.NewStruct(m)
}
