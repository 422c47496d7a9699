package routing

import (
	"encoding/json"
	"reflect"
	"testing"

	"github.com/xiaot623/planweave/internal/domain"
)

func TestNormalizeStrings(t *testing.T) {
	cases := []struct {
		name string
		in   interface{}
		want []string
	}{
		{"nil", nil, []string{}},
		{"string slice", []string{" a ", "", "b"}, []string{"a", "b"}},
		{"interface slice", []interface{}{"a", 1, " b ", nil}, []string{"a", "b"}},
		{"single string", "  x  ", []string{"x"}},
		{"number", 42, []string{}},
	}
	for _, tc := range cases {
		got := NormalizeStrings(tc.in)
		if !reflect.DeepEqual(got, tc.want) {
			t.Errorf("%s: NormalizeStrings(%v) = %v, want %v", tc.name, tc.in, got, tc.want)
		}
	}
}

func TestMergeUniqueAssociative(t *testing.T) {
	a := []string{"x", "y"}
	b := []string{"y", "z"}
	c := []string{"z", "w"}

	left := MergeUnique(MergeUnique(a, b), c)
	right := MergeUnique(a, MergeUnique(b, c))
	if !reflect.DeepEqual(left, right) {
		t.Fatalf("MergeUnique not associative: %v vs %v", left, right)
	}
	if !reflect.DeepEqual(left, []string{"x", "y", "z", "w"}) {
		t.Fatalf("unexpected merge result: %v", left)
	}
}

func TestInferRoleFromTags(t *testing.T) {
	if got := InferRoleFromTags([]string{"specialist", "router"}); got != domain.RoleRouter {
		t.Fatalf("router precedence failed, got %q", got)
	}
	if got := InferRoleFromTags([]string{"domain-router"}); got != domain.RoleRouter {
		t.Fatalf("domain-router tag not recognized, got %q", got)
	}
	if got := InferRoleFromTags([]string{"specialist"}); got != domain.RoleSpecialist {
		t.Fatalf("specialist tag not recognized, got %q", got)
	}
	if got := InferRoleFromTags([]string{"other"}); got != "" {
		t.Fatalf("expected unknown role, got %q", got)
	}
}

func TestExtractDomainsFromTags(t *testing.T) {
	got := ExtractDomainsFromTags([]string{"domain: Billing ", "router", "domain:ops"})
	want := []string{"billing", "ops"}
	if !reflect.DeepEqual(got, want) {
		t.Fatalf("ExtractDomainsFromTags = %v, want %v", got, want)
	}
}

func TestInferDomainFromLabel(t *testing.T) {
	cases := []struct {
		name, slug, want string
	}{
		{"Billing Router", "billing-router", "billing"},
		{"Ops Specialist", "ops_specialist", "ops"},
		{"Billing Router", "no-suffix", "billing"},
		{"plain", "plain", ""},
	}
	for _, tc := range cases {
		if got := InferDomainFromLabel(tc.name, tc.slug); got != tc.want {
			t.Errorf("InferDomainFromLabel(%q, %q) = %q, want %q", tc.name, tc.slug, got, tc.want)
		}
	}
}

func TestBuildAgentSummaryMetadataWins(t *testing.T) {
	agent := domain.Agent{
		Slug: "billing-router",
		Name: "Billing Router",
		Metadata: domain.AgentMetadata{
			Role:    domain.RoleSpecialist,
			Domains: []string{"payments"},
			Tags:    []string{"router"},
		},
	}
	s := BuildAgentSummary(agent)
	if s.Role != domain.RoleSpecialist {
		t.Fatalf("metadata role should win, got %q", s.Role)
	}
	if !reflect.DeepEqual(s.Domains, []string{"payments"}) {
		t.Fatalf("metadata domains should win, got %v", s.Domains)
	}
}

func TestBuildAgentSummaryInferenceFillsGaps(t *testing.T) {
	agent := domain.Agent{
		Slug:     "ops-specialist",
		Name:     "Ops Specialist",
		Metadata: domain.AgentMetadata{},
	}
	s := BuildAgentSummary(agent)
	if s.Role != domain.RoleSpecialist {
		t.Fatalf("expected specialist from label, got %q", s.Role)
	}
	if !reflect.DeepEqual(s.Domains, []string{"ops"}) {
		t.Fatalf("expected inferred domain, got %v", s.Domains)
	}
}

func rosterFixture() []domain.Agent {
	return []domain.Agent{
		{Slug: "main-router", Name: "Main", Metadata: domain.AgentMetadata{Role: domain.RoleRouter, Tags: []string{"router", "domain-router"}}},
		{Slug: "billing-router", Name: "Billing Router", Metadata: domain.AgentMetadata{Role: domain.RoleRouter, Domains: []string{"billing"}, Tags: []string{"router"}}},
		{Slug: "billing-specialist", Name: "Billing Specialist", Metadata: domain.AgentMetadata{Role: domain.RoleSpecialist, Domains: []string{"billing"}, Tags: []string{"specialist"}}},
		{Slug: "ops-specialist", Name: "Ops Specialist", Metadata: domain.AgentMetadata{Role: domain.RoleSpecialist, Domains: []string{"ops"}, Tags: []string{"specialist"}}},
		{Slug: "ghost", Name: "Ghost", Metadata: domain.AgentMetadata{Role: domain.RoleRouter, Hidden: true}},
	}
}

func TestBuildRouterIndex(t *testing.T) {
	idx := BuildRouterIndex(rosterFixture(), 50)
	if len(idx) != 2 {
		t.Fatalf("expected 2 visible routers, got %d", len(idx))
	}
	if idx[0].Slug != "main-router" {
		t.Fatalf("expected stable order, got %v", idx)
	}

	capped := BuildRouterIndex(rosterFixture(), 1)
	if len(capped) != 1 {
		t.Fatalf("limit not applied, got %d entries", len(capped))
	}
}

func TestBuildSpecialistIndexDomainFilter(t *testing.T) {
	all := BuildSpecialistIndex(rosterFixture(), 50, nil)
	if len(all) != 2 {
		t.Fatalf("expected 2 specialists, got %d", len(all))
	}

	billing := BuildSpecialistIndex(rosterFixture(), 50, []string{"billing"})
	if len(billing) != 1 || billing[0].Slug != "billing-specialist" {
		t.Fatalf("domain filter failed: %v", billing)
	}
}

func TestSummarizeAgents(t *testing.T) {
	sum := SummarizeAgents(rosterFixture())
	if sum.Total != 5 {
		t.Fatalf("expected total 5, got %d", sum.Total)
	}
	if sum.ByRole["router"] != 3 || sum.ByRole["specialist"] != 2 {
		t.Fatalf("unexpected role counts: %v", sum.ByRole)
	}
	if sum.ByDomain["billing"] != 2 {
		t.Fatalf("unexpected domain counts: %v", sum.ByDomain)
	}
	if len(sum.TopTags) == 0 || sum.TopTags[0] != "router" && sum.TopTags[0] != "specialist" {
		t.Fatalf("unexpected top tags: %v", sum.TopTags)
	}
}

func TestReadRoutingState(t *testing.T) {
	state := ReadRoutingState(json.RawMessage(`{"routingState":{"visitedSlugs":["a","b"],"routingDepth":2}}`))
	if !reflect.DeepEqual(state.VisitedSlugs, []string{"a", "b"}) || state.RoutingDepth != 2 {
		t.Fatalf("unexpected state: %+v", state)
	}

	state = ReadRoutingState(json.RawMessage(`{"routingState":{"visitedSlugs":"solo","routingDepth":"nan"}}`))
	if !reflect.DeepEqual(state.VisitedSlugs, []string{"solo"}) || state.RoutingDepth != 0 {
		t.Fatalf("non-numeric depth should be 0: %+v", state)
	}

	state = ReadRoutingState(json.RawMessage(`{"routingState":{"routingDepth":-3}}`))
	if state.RoutingDepth != 0 {
		t.Fatalf("negative depth should clamp to 0, got %d", state.RoutingDepth)
	}

	state = ReadRoutingState(nil)
	if state.RoutingDepth != 0 || len(state.VisitedSlugs) != 0 {
		t.Fatalf("empty context should yield zero state: %+v", state)
	}
}

func TestSummarizeResult(t *testing.T) {
	long := make([]byte, 450)
	for i := range long {
		long[i] = 'x'
	}
	s := SummarizeResult(string(long)).(string)
	if len(s) != MaxSummaryStringLen+3 {
		t.Fatalf("unexpected truncated length %d", len(s))
	}

	arr := SummarizeResult([]interface{}{1, 2, 3})
	if !reflect.DeepEqual(arr, map[string]interface{}{"type": "array", "length": 3}) {
		t.Fatalf("unexpected array summary: %v", arr)
	}

	obj := SummarizeResult(map[string]interface{}{"b": 1, "a": 2}).(map[string]interface{})
	if obj["type"] != "object" || obj["truncated"] != false {
		t.Fatalf("unexpected object summary: %v", obj)
	}
	if !reflect.DeepEqual(obj["keys"], []string{"a", "b"}) {
		t.Fatalf("keys not sorted: %v", obj["keys"])
	}
}

func TestSummarizeResultIdempotent(t *testing.T) {
	long := make([]byte, 300)
	for i := range long {
		long[i] = 'y'
	}
	inputs := []interface{}{
		string(long),
		[]interface{}{1, 2},
		map[string]interface{}{"k1": 1, "k2": 2},
	}
	for _, in := range inputs {
		once := SummarizeResult(in)
		twice := SummarizeResult(once)
		if !reflect.DeepEqual(once, twice) {
			t.Fatalf("SummarizeResult not idempotent: %v vs %v", once, twice)
		}
	}
}
