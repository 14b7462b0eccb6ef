package diff

import "encoding/json"

// ConflictResolver resolves a single key's three-way conflict, or declines
// by returning ok=false, leaving it for the caller to surface as an
// unresolved conflict (grounded on original_source/src/diff.rs's
// ConflictResolver trait).
type ConflictResolver interface {
	Resolve(c MergeConflict) (MergeResult, bool)
}

// IgnoreResolver declines every conflict, leaving the destination exactly
// as it was: the merge surfaces the conflict and applies no side effects,
// which in practice "keeps destination unchanged" since nothing is written.
type IgnoreResolver struct{}

func (IgnoreResolver) Resolve(c MergeConflict) (MergeResult, bool) {
	return MergeResult{}, false
}

// TakeSourceResolver always prefers the incoming (source) side.
type TakeSourceResolver struct{}

func (TakeSourceResolver) Resolve(c MergeConflict) (MergeResult, bool) {
	if c.SourceValue == nil {
		return MergeResult{Kind: MergeRemoved, Key: c.Key}, true
	}
	return MergeResult{Kind: MergeModified, Key: c.Key, Value: c.SourceValue}, true
}

// TakeDestinationResolver always prefers the existing (destination) side.
type TakeDestinationResolver struct{}

func (TakeDestinationResolver) Resolve(c MergeConflict) (MergeResult, bool) {
	if c.DestinationValue == nil {
		return MergeResult{Kind: MergeRemoved, Key: c.Key}, true
	}
	return MergeResult{Kind: MergeModified, Key: c.Key, Value: c.DestinationValue}, true
}

// AgentPriorityResolver decides by the priority of the agent named in the
// conflicting key's "agent<id>:" prefix, matching the convention used by
// callers that namespace keys per writer. When both sides hold a value, the
// source wins if that agent's priority is at least DefaultPriority (keys with
// no agent prefix, or an unregistered agent, get DefaultPriority) and the
// destination wins otherwise.
type AgentPriorityResolver struct {
	Priorities      map[string]uint32
	DefaultPriority uint32
}

// NewAgentPriorityResolver returns a resolver with a default priority of 1
// for any agent not explicitly registered.
func NewAgentPriorityResolver() *AgentPriorityResolver {
	return &AgentPriorityResolver{Priorities: map[string]uint32{}, DefaultPriority: 1}
}

func (r *AgentPriorityResolver) SetPriority(agentID string, priority uint32) {
	r.Priorities[agentID] = priority
}

func (r *AgentPriorityResolver) priorityFor(key []byte) uint32 {
	id, ok := agentIDFromKey(key)
	if !ok {
		return r.DefaultPriority
	}
	if p, ok := r.Priorities[id]; ok {
		return p
	}
	return r.DefaultPriority
}

func agentIDFromKey(key []byte) (string, bool) {
	const prefix = "agent"
	s := string(key)
	if len(s) < len(prefix) || s[:len(prefix)] != prefix {
		return "", false
	}
	for i := len(prefix); i < len(s); i++ {
		if s[i] == ':' {
			return s[:i], true
		}
	}
	return "", false
}

func (r *AgentPriorityResolver) Resolve(c MergeConflict) (MergeResult, bool) {
	switch {
	case c.SourceValue != nil && c.DestinationValue != nil:
		if r.priorityFor(c.Key) >= r.DefaultPriority {
			return MergeResult{Kind: MergeModified, Key: c.Key, Value: c.SourceValue}, true
		}
		return MergeResult{Kind: MergeModified, Key: c.Key, Value: c.DestinationValue}, true
	case c.SourceValue != nil:
		return MergeResult{Kind: MergeAdded, Key: c.Key, Value: c.SourceValue}, true
	case c.DestinationValue != nil:
		return MergeResult{Kind: MergeModified, Key: c.Key, Value: c.DestinationValue}, true
	default:
		return MergeResult{Kind: MergeRemoved, Key: c.Key}, true
	}
}

// TimestampExtractor pulls a comparable timestamp out of a key/value pair,
// returning ok=false when none can be found.
type TimestampExtractor func(key, value []byte) (uint64, bool)

// TimestampResolver prefers whichever side's extracted timestamp is larger,
// defaulting to the source when neither side yields one.
type TimestampResolver struct {
	Extract TimestampExtractor
}

// NewTimestampResolver builds a resolver using the "timestamp:<n>:" key
// convention as its default extractor.
func NewTimestampResolver() *TimestampResolver {
	return &TimestampResolver{Extract: extractTimestampFromKey}
}

func extractTimestampFromKey(key, _ []byte) (uint64, bool) {
	const marker = "timestamp:"
	s := string(key)
	idx := indexOf(s, marker)
	if idx < 0 {
		return 0, false
	}
	rest := s[idx+len(marker):]
	end := indexOf(rest, ":")
	if end >= 0 {
		rest = rest[:end]
	}
	var v uint64
	for _, c := range []byte(rest) {
		if c < '0' || c > '9' {
			return 0, false
		}
		v = v*10 + uint64(c-'0')
	}
	if rest == "" {
		return 0, false
	}
	return v, true
}

func indexOf(s, sub string) int {
	for i := 0; i+len(sub) <= len(s); i++ {
		if s[i:i+len(sub)] == sub {
			return i
		}
	}
	return -1
}

func (r *TimestampResolver) Resolve(c MergeConflict) (MergeResult, bool) {
	switch {
	case c.SourceValue != nil && c.DestinationValue != nil:
		sTS, sOK := r.Extract(c.Key, c.SourceValue)
		dTS, dOK := r.Extract(c.Key, c.DestinationValue)
		switch {
		case sOK && dOK:
			if sTS >= dTS {
				return MergeResult{Kind: MergeModified, Key: c.Key, Value: c.SourceValue}, true
			}
			return MergeResult{Kind: MergeModified, Key: c.Key, Value: c.DestinationValue}, true
		case sOK:
			return MergeResult{Kind: MergeModified, Key: c.Key, Value: c.SourceValue}, true
		case dOK:
			return MergeResult{Kind: MergeModified, Key: c.Key, Value: c.DestinationValue}, true
		default:
			return MergeResult{Kind: MergeModified, Key: c.Key, Value: c.SourceValue}, true
		}
	case c.SourceValue != nil:
		return MergeResult{Kind: MergeAdded, Key: c.Key, Value: c.SourceValue}, true
	case c.DestinationValue != nil:
		return MergeResult{Kind: MergeModified, Key: c.Key, Value: c.DestinationValue}, true
	default:
		return MergeResult{Kind: MergeRemoved, Key: c.Key}, true
	}
}

// SemanticMergeResolver structurally merges both sides when they parse as
// JSON: objects merge key-wise (recursively), arrays concatenate with
// de-duplication, and any other shape falls back to preferring source.
// There is no structured-document library in the reference corpus, so this
// uses encoding/json directly (documented in DESIGN.md).
type SemanticMergeResolver struct{}

func (SemanticMergeResolver) Resolve(c MergeConflict) (MergeResult, bool) {
	if c.SourceValue == nil {
		if c.DestinationValue == nil {
			return MergeResult{Kind: MergeRemoved, Key: c.Key}, true
		}
		return MergeResult{Kind: MergeModified, Key: c.Key, Value: c.DestinationValue}, true
	}
	if c.DestinationValue == nil {
		return MergeResult{Kind: MergeAdded, Key: c.Key, Value: c.SourceValue}, true
	}

	var sourceVal, destVal interface{}
	if json.Unmarshal(c.SourceValue, &sourceVal) == nil && json.Unmarshal(c.DestinationValue, &destVal) == nil {
		merged := mergeJSONValues(sourceVal, destVal)
		if out, err := json.Marshal(merged); err == nil {
			return MergeResult{Kind: MergeModified, Key: c.Key, Value: out}, true
		}
	}
	return MergeResult{Kind: MergeModified, Key: c.Key, Value: c.SourceValue}, true
}

func mergeJSONValues(source, dest interface{}) interface{} {
	sourceObj, sourceIsObj := source.(map[string]interface{})
	destObj, destIsObj := dest.(map[string]interface{})
	if sourceIsObj && destIsObj {
		merged := make(map[string]interface{}, len(destObj))
		for k, v := range destObj {
			merged[k] = v
		}
		for k, v := range sourceObj {
			if dv, ok := destObj[k]; ok {
				merged[k] = mergeJSONValues(v, dv)
			} else {
				merged[k] = v
			}
		}
		return merged
	}

	sourceArr, sourceIsArr := source.([]interface{})
	destArr, destIsArr := dest.([]interface{})
	if sourceIsArr && destIsArr {
		merged := append([]interface{}{}, destArr...)
		for _, item := range sourceArr {
			if !containsJSON(merged, item) {
				merged = append(merged, item)
			}
		}
		return merged
	}

	return source
}

func containsJSON(haystack []interface{}, needle interface{}) bool {
	for _, v := range haystack {
		if jsonEqual(v, needle) {
			return true
		}
	}
	return false
}

func jsonEqual(a, b interface{}) bool {
	ab, aerr := json.Marshal(a)
	bb, berr := json.Marshal(b)
	if aerr != nil || berr != nil {
		return false
	}
	return string(ab) == string(bb)
}
