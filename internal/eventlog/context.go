package eventlog

import "fmt"

// Context decoders for the event payloads the state machine consumes.
// Each decoder tolerates nothing: a missing or mistyped field is an error,
// so a malformed event is rejected before it can corrupt job state.

// SubmitContext is the payload of a "submit" event.
type SubmitContext struct {
	Urgency int
	UserID  uint32
	Flags   int
}

// DecodeSubmit extracts urgency, userid and flags from a submit context.
func DecodeSubmit(ctx map[string]any) (SubmitContext, error) {
	urgency, err := intField(ctx, "urgency")
	if err != nil {
		return SubmitContext{}, err
	}
	userid, err := intField(ctx, "userid")
	if err != nil {
		return SubmitContext{}, err
	}
	flags, err := intField(ctx, "flags")
	if err != nil {
		return SubmitContext{}, err
	}
	if userid < 0 {
		return SubmitContext{}, fmt.Errorf("context userid %d is negative", userid)
	}
	return SubmitContext{Urgency: int(urgency), UserID: uint32(userid), Flags: int(flags)}, nil
}

// DecodePriority extracts the priority value from a priority context.
func DecodePriority(ctx map[string]any) (int64, error) {
	return intField(ctx, "priority")
}

// DecodeUrgency extracts the urgency value from an urgency context.
func DecodeUrgency(ctx map[string]any) (int, error) {
	v, err := intField(ctx, "urgency")
	return int(v), err
}

// DecodeSeverity extracts the severity value from an exception context.
func DecodeSeverity(ctx map[string]any) (int, error) {
	v, err := intField(ctx, "severity")
	return int(v), err
}

// DecodeFinal extracts the final flag from a release context.
func DecodeFinal(ctx map[string]any) (bool, error) {
	v, ok := ctx["final"]
	if !ok {
		return false, fmt.Errorf("context missing %q", "final")
	}
	b, ok := v.(bool)
	if !ok {
		return false, fmt.Errorf("context field %q is not a boolean", "final")
	}
	return b, nil
}

// DecodeDescription extracts the description from a dependency context.
func DecodeDescription(ctx map[string]any) (string, error) {
	return stringField(ctx, "description")
}

// DecodeFlagNames extracts the flag name list from a set-flags context.
func DecodeFlagNames(ctx map[string]any) ([]string, error) {
	v, ok := ctx["flags"]
	if !ok {
		return nil, fmt.Errorf("context missing %q", "flags")
	}
	list, ok := v.([]any)
	if !ok {
		return nil, fmt.Errorf("context field %q is not an array", "flags")
	}
	names := make([]string, 0, len(list))
	for _, e := range list {
		s, ok := e.(string)
		if !ok {
			return nil, fmt.Errorf("context field %q contains a non-string element", "flags")
		}
		names = append(names, s)
	}
	return names, nil
}

func intField(ctx map[string]any, key string) (int64, error) {
	v, ok := ctx[key]
	if !ok {
		return 0, fmt.Errorf("context missing %q", key)
	}
	switch n := v.(type) {
	case int64:
		return n, nil
	case int:
		return int64(n), nil
	case float64:
		if n != float64(int64(n)) {
			return 0, fmt.Errorf("context field %q is not an integer", key)
		}
		return int64(n), nil
	default:
		return 0, fmt.Errorf("context field %q is not a number", key)
	}
}

func stringField(ctx map[string]any, key string) (string, error) {
	v, ok := ctx[key]
	if !ok {
		return "", fmt.Errorf("context missing %q", key)
	}
	s, ok := v.(string)
	if !ok {
		return "", fmt.Errorf("context field %q is not a string", key)
	}
	return s, nil
}
