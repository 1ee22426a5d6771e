package chat

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jinford/kbchat/internal/core/datatools"
	"github.com/jinford/kbchat/internal/core/index"
	"github.com/jinford/kbchat/internal/core/memory"
)

type stubSearcher struct {
	matches []index.Match
	err     error
	lastK   int
}

func (s *stubSearcher) Search(ctx context.Context, query string, k int) ([]index.Match, error) {
	s.lastK = k
	if s.err != nil {
		return nil, s.err
	}
	return s.matches, nil
}

type stubGenerator struct {
	answer     string
	err        error
	lastPrompt string
	calls      int
}

func (g *stubGenerator) Generate(ctx context.Context, prompt string) (string, error) {
	g.calls++
	g.lastPrompt = prompt
	if g.err != nil {
		return "", g.err
	}
	return g.answer, nil
}

type stubClassifier struct {
	invocations []Invocation
	err         error
}

func (c *stubClassifier) SelectTools(ctx context.Context, query string, catalog []datatools.Description) ([]Invocation, error) {
	if c.err != nil {
		return nil, c.err
	}
	return c.invocations, nil
}

// wordCounter は空白区切りの語数をトークン数とみなす単純なカウンタ
type wordCounter struct{}

func (wordCounter) Count(text string) int {
	return len(strings.Fields(text))
}

type chatRepo struct {
	employees []datatools.Employee
	customers []datatools.Customer
}

func (r *chatRepo) ListEmployees(ctx context.Context) ([]datatools.Employee, error) {
	if len(r.employees) == 0 {
		return nil, datatools.ErrDataUnavailable
	}
	return r.employees, nil
}

func (r *chatRepo) ListCustomers(ctx context.Context) ([]datatools.Customer, error) {
	if len(r.customers) == 0 {
		return nil, datatools.ErrDataUnavailable
	}
	return r.customers, nil
}

func (r *chatRepo) CountEmployees(ctx context.Context) (int, error) {
	return len(r.employees), nil
}

func (r *chatRepo) CountCustomers(ctx context.Context) (int, error) {
	return len(r.customers), nil
}

func (r *chatRepo) AverageSalary(ctx context.Context) (float64, error) {
	return 0, datatools.ErrDataUnavailable
}

func (r *chatRepo) TopSalary(ctx context.Context) (datatools.Employee, error) {
	return datatools.Employee{}, datatools.ErrDataUnavailable
}

func (r *chatRepo) ListDepartments(ctx context.Context) ([]string, error) {
	return nil, datatools.ErrDataUnavailable
}

func (r *chatRepo) ListIndustries(ctx context.Context) ([]string, error) {
	return nil, datatools.ErrDataUnavailable
}

func testRepo() *chatRepo {
	return &chatRepo{
		employees: []datatools.Employee{
			{ID: 1, Name: "Sarah Chen", Department: "Engineering", Position: "Senior Software Engineer"},
			{ID: 2, Name: "Emily Davis", Department: "HR", Position: "HR Generalist"},
		},
		customers: []datatools.Customer{
			{ID: 1, CompanyName: "TechStart Inc", Industry: "Technology", SubscriptionTier: "Enterprise", MonthlyRevenue: 4500},
		},
	}
}

func newTestService(searcher Searcher, generator Generator, opts ...ServiceOption) *Service {
	return NewService(
		searcher,
		datatools.NewRegistry(testRepo()),
		memory.NewLog(20),
		generator,
		wordCounter{},
		DefaultConfig(),
		opts...,
	)
}

func TestService_ChatCombinesRetrievalAndStructuredTools(t *testing.T) {
	searcher := &stubSearcher{matches: []index.Match{
		{ChunkID: "c1", SourceID: "policies/vacation.md", Content: "Employees accrue 20 vacation days per year.", Score: 0.91},
	}}
	generator := &stubGenerator{answer: "20 days, and Sarah Chen works in Engineering."}
	svc := newTestService(searcher, generator)

	result, err := svc.Chat(context.Background(), "what's our vacation policy and which employees are in Engineering?")
	require.NoError(t, err)

	// 両方の情報源が同一ターンで参照される
	assert.Equal(t, 4, searcher.lastK)
	require.Len(t, result.Sources, 1)
	assert.Equal(t, "policies/vacation.md", result.Sources[0].SourceID)
	assert.Contains(t, result.ToolsUsed, "find_employees")
	assert.False(t, result.NoGrounding)

	assert.Contains(t, generator.lastPrompt, "Employees accrue 20 vacation days")
	assert.Contains(t, generator.lastPrompt, "Sarah Chen")
}

func TestService_ChatPromptSectionsInFixedOrder(t *testing.T) {
	searcher := &stubSearcher{matches: []index.Match{
		{ChunkID: "c1", SourceID: "faq.md", Content: "excerpt body", Score: 0.8},
	}}
	generator := &stubGenerator{answer: "ok"}
	svc := newTestService(searcher, generator)

	svc.memory.Append(memory.NewTurn(memory.RoleUser, "earlier question"))
	svc.memory.Append(memory.NewTurn(memory.RoleAssistant, "earlier answer"))

	_, err := svc.Chat(context.Background(), "how many employees do we have? count employees")
	require.NoError(t, err)

	prompt := generator.lastPrompt
	excerptIdx := strings.Index(prompt, "## Knowledge base excerpts")
	toolIdx := strings.Index(prompt, "## Structured data results")
	historyIdx := strings.Index(prompt, "## Conversation so far")
	questionIdx := strings.Index(prompt, "## Question")

	require.True(t, excerptIdx >= 0 && toolIdx >= 0 && historyIdx >= 0 && questionIdx >= 0)
	assert.Less(t, excerptIdx, toolIdx)
	assert.Less(t, toolIdx, historyIdx)
	assert.Less(t, historyIdx, questionIdx)
	assert.Contains(t, prompt, "earlier question")
}

func TestService_ChatCommitsBothTurnsOnSuccess(t *testing.T) {
	svc := newTestService(&stubSearcher{}, &stubGenerator{answer: "the answer"})

	_, err := svc.Chat(context.Background(), "any question at all")
	require.NoError(t, err)

	turns := svc.History(10)
	require.Len(t, turns, 2)
	assert.Equal(t, memory.RoleUser, turns[0].Role)
	assert.Equal(t, "any question at all", turns[0].Content)
	assert.Equal(t, memory.RoleAssistant, turns[1].Role)
	assert.Equal(t, "the answer", turns[1].Content)
}

func TestService_GenerationFailureLeavesMemoryUntouched(t *testing.T) {
	generator := &stubGenerator{err: fmt.Errorf("upstream exploded")}
	svc := newTestService(&stubSearcher{}, generator)

	_, err := svc.Chat(context.Background(), "a doomed question")
	assert.ErrorIs(t, err, ErrGenerationFailed)
	assert.Empty(t, svc.History(10))
}

func TestService_GenerationTimeout(t *testing.T) {
	generator := &stubGenerator{err: fmt.Errorf("llm call: %w", context.DeadlineExceeded)}
	svc := newTestService(&stubSearcher{}, generator)

	_, err := svc.Chat(context.Background(), "a slow question")
	assert.ErrorIs(t, err, ErrGenerationTimeout)
	assert.NotErrorIs(t, err, ErrGenerationFailed)
	assert.Empty(t, svc.History(10))
}

func TestService_NoGroundingStillAnswers(t *testing.T) {
	generator := &stubGenerator{answer: "I don't have information about that."}
	svc := newTestService(&stubSearcher{}, generator)

	result, err := svc.Chat(context.Background(), "tell me about quantum entanglement")
	require.NoError(t, err)

	assert.True(t, result.NoGrounding)
	assert.Contains(t, generator.lastPrompt, "No grounding found")
	assert.Len(t, svc.History(10), 2)
}

func TestService_IndexUnavailableDegradesToStructuredOnly(t *testing.T) {
	searcher := &stubSearcher{err: index.ErrIndexUnavailable}
	generator := &stubGenerator{answer: "Sarah Chen is in Engineering."}
	svc := newTestService(searcher, generator)

	result, err := svc.Chat(context.Background(), "which employees work in Engineering?")
	require.NoError(t, err)

	assert.Empty(t, result.Sources)
	assert.Contains(t, result.ToolsUsed, "find_employees")
	assert.False(t, result.NoGrounding)
}

func TestService_ClassifierSelectionIsValidated(t *testing.T) {
	classifier := &stubClassifier{invocations: []Invocation{
		{Tool: "find_customers", Args: map[string]any{"name": "techstart"}},
		{Tool: "delete_everything", Args: map[string]any{}},
	}}
	generator := &stubGenerator{answer: "TechStart Inc is an Enterprise customer."}
	svc := newTestService(&stubSearcher{}, generator, WithClassifier(classifier))

	result, err := svc.Chat(context.Background(), "tell me about TechStart")
	require.NoError(t, err)

	assert.Contains(t, result.ToolsUsed, "find_customers")
	assert.NotContains(t, result.ToolsUsed, "delete_everything")
	assert.Contains(t, generator.lastPrompt, "TechStart Inc")
}

func TestService_ClassifierBadArgsFallBackToNoArgs(t *testing.T) {
	classifier := &stubClassifier{invocations: []Invocation{
		{Tool: "find_employees", Args: map[string]any{"salary": 90000}},
	}}
	generator := &stubGenerator{answer: "ok"}
	svc := newTestService(&stubSearcher{}, generator, WithClassifier(classifier))

	result, err := svc.Chat(context.Background(), "personnel overview")
	require.NoError(t, err)

	// 不正引数は破棄され、引数なしで実行される（全従業員が返る）
	assert.Contains(t, result.ToolsUsed, "find_employees")
	assert.Contains(t, generator.lastPrompt, "Found 2 employee(s)")
}

func TestService_ClassifierErrorFallsBackToKeywords(t *testing.T) {
	classifier := &stubClassifier{err: errors.New("classifier unavailable")}
	generator := &stubGenerator{answer: "ok"}
	svc := newTestService(&stubSearcher{}, generator, WithClassifier(classifier))

	result, err := svc.Chat(context.Background(), "show me revenue statistics")
	require.NoError(t, err)
	assert.Contains(t, result.ToolsUsed, "revenue_statistics")
}

func TestService_EmptyQueryRejected(t *testing.T) {
	svc := newTestService(&stubSearcher{}, &stubGenerator{answer: "ok"})

	_, err := svc.Chat(context.Background(), "   ")
	assert.Error(t, err)
	assert.Empty(t, svc.History(10))
}
