// Package routing provides pure helpers for deriving agent summaries,
// router/specialist indexes, and routing state from stored agents. No I/O.
package routing

import (
	"encoding/json"
	"sort"
	"strings"

	"github.com/xiaot623/planweave/internal/domain"
)

// MaxSummaryStringLen is the cutoff beyond which summarized strings are truncated.
const MaxSummaryStringLen = 200

// maxSummaryKeys bounds how many object keys a summary retains.
const maxSummaryKeys = 20

// topTagCount is how many tags SummarizeAgents reports.
const topTagCount = 12

// NormalizeStrings coerces an arbitrary JSON-ish value into a slice of
// non-empty trimmed strings. Non-string items are dropped.
func NormalizeStrings(v interface{}) []string {
	out := []string{}
	switch val := v.(type) {
	case nil:
		return out
	case string:
		if s := strings.TrimSpace(val); s != "" {
			out = append(out, s)
		}
	case []string:
		for _, item := range val {
			if s := strings.TrimSpace(item); s != "" {
				out = append(out, s)
			}
		}
	case []interface{}:
		for _, item := range val {
			if s, ok := item.(string); ok {
				if t := strings.TrimSpace(s); t != "" {
					out = append(out, t)
				}
			}
		}
	}
	return out
}

// MergeUnique returns the stable-order deduplicated union of a and b.
func MergeUnique(a, b []string) []string {
	out := []string{}
	seen := map[string]bool{}
	for _, s := range a {
		if !seen[s] {
			seen[s] = true
			out = append(out, s)
		}
	}
	for _, s := range b {
		if !seen[s] {
			seen[s] = true
			out = append(out, s)
		}
	}
	return out
}

// InferRoleFromTags derives a role from tags. Router precedence beats
// specialist when both are present. Returns "" when neither applies.
func InferRoleFromTags(tags []string) domain.AgentRole {
	hasSpecialist := false
	for _, t := range tags {
		switch t {
		case "router", "domain-router":
			return domain.RoleRouter
		case "specialist":
			hasSpecialist = true
		}
	}
	if hasSpecialist {
		return domain.RoleSpecialist
	}
	return ""
}

// InferRoleFromLabel derives a role from naming conventions on the slug or
// name. Used only when tags and metadata are silent.
func InferRoleFromLabel(name, slug string) domain.AgentRole {
	lowerSlug := strings.ToLower(slug)
	lowerName := strings.ToLower(name)
	if strings.HasSuffix(lowerSlug, "_router") || strings.HasSuffix(lowerSlug, "-router") || strings.HasSuffix(lowerName, " router") {
		return domain.RoleRouter
	}
	if strings.HasSuffix(lowerSlug, "_specialist") || strings.HasSuffix(lowerSlug, "-specialist") || strings.HasSuffix(lowerName, " specialist") {
		return domain.RoleSpecialist
	}
	return ""
}

// ExtractDomainsFromTags collects the normalized suffix of every "domain:" tag.
func ExtractDomainsFromTags(tags []string) []string {
	out := []string{}
	for _, t := range tags {
		if strings.HasPrefix(t, "domain:") {
			if d := strings.ToLower(strings.TrimSpace(strings.TrimPrefix(t, "domain:"))); d != "" {
				out = append(out, d)
			}
		}
	}
	return out
}

// InferDomainFromLabel strips role suffixes from the slug (preferred) or name
// and lowercases the remainder.
func InferDomainFromLabel(name, slug string) string {
	for _, suffix := range []string{"_router", "-router", "_specialist", "-specialist"} {
		if strings.HasSuffix(slug, suffix) {
			return strings.ToLower(strings.TrimSpace(strings.TrimSuffix(slug, suffix)))
		}
	}
	for _, suffix := range []string{" router", " specialist"} {
		lower := strings.ToLower(name)
		if strings.HasSuffix(lower, suffix) {
			return strings.TrimSpace(strings.TrimSuffix(lower, suffix))
		}
	}
	return ""
}

// AgentSummary is the routing-facing projection of an agent.
type AgentSummary struct {
	Slug         string           `json:"slug"`
	Name         string           `json:"name"`
	Description  string           `json:"description,omitempty"`
	Tags         []string         `json:"tags"`
	Domains      []string         `json:"domains"`
	Capabilities []string         `json:"capabilities"`
	Role         domain.AgentRole `json:"role,omitempty"`
	System       bool             `json:"system,omitempty"`
	Hidden       bool             `json:"hidden,omitempty"`
}

// IndexEntry is the compact projection used in router/specialist indexes.
type IndexEntry struct {
	Slug        string   `json:"slug"`
	Name        string   `json:"name"`
	Description string   `json:"description,omitempty"`
	Domains     []string `json:"domains"`
	Tags        []string `json:"tags"`
}

// BuildAgentSummary combines agent metadata with tag and label inference.
// Metadata wins; inference fills gaps.
func BuildAgentSummary(agent domain.Agent) AgentSummary {
	md := agent.Metadata
	tags := NormalizeStrings(md.Tags)

	role := md.Role
	if role == "" {
		role = InferRoleFromTags(tags)
	}
	if role == "" {
		role = InferRoleFromLabel(agent.Name, agent.Slug)
	}

	domains := NormalizeStrings(md.Domains)
	if len(domains) == 0 {
		domains = ExtractDomainsFromTags(tags)
	}
	if len(domains) == 0 {
		if d := InferDomainFromLabel(agent.Name, agent.Slug); d != "" {
			domains = []string{d}
		}
	}

	return AgentSummary{
		Slug:         agent.Slug,
		Name:         agent.Name,
		Description:  agent.Description,
		Tags:         tags,
		Domains:      domains,
		Capabilities: NormalizeStrings(md.Capabilities),
		Role:         role,
		System:       md.System,
		Hidden:       md.Hidden,
	}
}

// BuildRouterIndex projects the first limit visible router agents.
func BuildRouterIndex(agents []domain.Agent, limit int) []IndexEntry {
	out := []IndexEntry{}
	for _, a := range agents {
		if len(out) >= limit {
			break
		}
		s := BuildAgentSummary(a)
		if s.Role != domain.RoleRouter || s.Hidden {
			continue
		}
		out = append(out, IndexEntry{Slug: s.Slug, Name: s.Name, Description: s.Description, Domains: s.Domains, Tags: s.Tags})
	}
	return out
}

// BuildSpecialistIndex projects visible specialists, optionally filtered to
// those intersecting the given domains.
func BuildSpecialistIndex(agents []domain.Agent, limit int, domains []string) []IndexEntry {
	want := map[string]bool{}
	for _, d := range domains {
		want[d] = true
	}
	out := []IndexEntry{}
	for _, a := range agents {
		if len(out) >= limit {
			break
		}
		s := BuildAgentSummary(a)
		if s.Role != domain.RoleSpecialist || s.Hidden {
			continue
		}
		if len(want) > 0 && !intersects(s.Domains, want) {
			continue
		}
		out = append(out, IndexEntry{Slug: s.Slug, Name: s.Name, Description: s.Description, Domains: s.Domains, Tags: s.Tags})
	}
	return out
}

func intersects(items []string, want map[string]bool) bool {
	for _, d := range items {
		if want[d] {
			return true
		}
	}
	return false
}

// RosterSummary is the aggregate view of the agent roster.
type RosterSummary struct {
	Total    int            `json:"total"`
	ByDomain map[string]int `json:"byDomain"`
	ByRole   map[string]int `json:"byRole"`
	TopTags  []string       `json:"topTags"`
}

// SummarizeAgents aggregates counts over the roster.
func SummarizeAgents(agents []domain.Agent) RosterSummary {
	sum := RosterSummary{
		Total:    len(agents),
		ByDomain: map[string]int{},
		ByRole:   map[string]int{},
	}
	tagCounts := map[string]int{}
	for _, a := range agents {
		s := BuildAgentSummary(a)
		role := string(s.Role)
		if role == "" {
			role = "unknown"
		}
		sum.ByRole[role]++
		for _, d := range s.Domains {
			sum.ByDomain[d]++
		}
		for _, t := range s.Tags {
			tagCounts[t]++
		}
	}

	tags := make([]string, 0, len(tagCounts))
	for t := range tagCounts {
		tags = append(tags, t)
	}
	sort.Slice(tags, func(i, j int) bool {
		if tagCounts[tags[i]] != tagCounts[tags[j]] {
			return tagCounts[tags[i]] > tagCounts[tags[j]]
		}
		return tags[i] < tags[j]
	})
	if len(tags) > topTagCount {
		tags = tags[:topTagCount]
	}
	sum.TopTags = tags
	return sum
}

// ReadRoutingState extracts the routing state from a run's context document.
// A non-numeric depth becomes 0; negative depths are clamped to 0.
func ReadRoutingState(contextDoc json.RawMessage) domain.RoutingState {
	state := domain.RoutingState{VisitedSlugs: []string{}}
	if len(contextDoc) == 0 {
		return state
	}
	var ctx map[string]interface{}
	if err := json.Unmarshal(contextDoc, &ctx); err != nil {
		return state
	}
	rs, ok := ctx["routingState"].(map[string]interface{})
	if !ok {
		return state
	}
	state.VisitedSlugs = NormalizeStrings(rs["visitedSlugs"])
	if depth, ok := rs["routingDepth"].(float64); ok && depth > 0 {
		state.RoutingDepth = int(depth)
	}
	return state
}

// SummarizeResult bounds an arbitrary decoded JSON value for inclusion in a
// child context: long strings are truncated, arrays and objects are replaced
// by shape descriptors. Already-summarized values pass through unchanged, so
// the function is idempotent.
func SummarizeResult(v interface{}) interface{} {
	switch val := v.(type) {
	case string:
		if len(val) > MaxSummaryStringLen {
			return val[:MaxSummaryStringLen] + "..."
		}
		return val
	case []interface{}:
		return map[string]interface{}{"type": "array", "length": len(val)}
	case map[string]interface{}:
		if isShapeSummary(val) {
			return val
		}
		keys := make([]string, 0, len(val))
		for k := range val {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		truncated := len(keys) > maxSummaryKeys
		if truncated {
			keys = keys[:maxSummaryKeys]
		}
		return map[string]interface{}{"type": "object", "keys": keys, "truncated": truncated}
	default:
		return v
	}
}

// SummarizeRawResult decodes a stored JSON result and summarizes it.
func SummarizeRawResult(raw json.RawMessage) interface{} {
	if len(raw) == 0 {
		return nil
	}
	var v interface{}
	if err := json.Unmarshal(raw, &v); err != nil {
		return SummarizeResult(string(raw))
	}
	return SummarizeResult(v)
}

// isShapeSummary recognizes the descriptors SummarizeResult itself produces.
func isShapeSummary(m map[string]interface{}) bool {
	switch m["type"] {
	case "array":
		_, ok := m["length"]
		return ok && len(m) == 2
	case "object":
		_, keysOK := m["keys"]
		_, truncOK := m["truncated"]
		return keysOK && truncOK && len(m) == 3
	}
	return false
}
