package decompose

import (
	"context"
	"errors"
	"testing"

	"github.com/hyperjump/kotae/internal/llm"
	"github.com/hyperjump/kotae/internal/llm/llmtest"
	"github.com/hyperjump/kotae/internal/plan"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func cityVocab(t *testing.T) *plan.Vocabulary {
	t.Helper()
	v, err := plan.NewVocabulary([]string{"Toronto", "Chicago", "Houston", "Boston", "Atlanta"})
	require.NoError(t, err)
	return v
}

const comparePlan = `{"subquestion_bundle_list": [
	{"question": "What is the population of Atlanta?", "function": "vector_retrieval", "file_name": "Atlanta"},
	{"question": "What is the population of Toronto?", "function": "vector_retrieval", "file_name": "Toronto"}
]}`

func newDecomposer(t *testing.T, model *llmtest.Model, opts ...Option) *Decomposer {
	t.Helper()
	opts = append([]Option{WithModel("gemini-1.5-flash"), WithTaskContext("We have a database of Wikipedia articles about cities.")}, opts...)
	return New(llm.NewGateway(model), cityVocab(t), opts...)
}

func TestDecompose_wellFormed(t *testing.T) {
	model := llmtest.New(comparePlan)
	d := newDecomposer(t, model)

	p := d.Decompose(context.Background(), "Compare the population of Atlanta and Toronto?")
	require.Len(t, p, 2)
	assert.Equal(t, plan.DocumentID("Atlanta"), p[0].Target)
	assert.Equal(t, plan.DocumentID("Toronto"), p[1].Target)
	assert.Equal(t, plan.VectorRetrieval, p[0].Strategy)

	calls := model.Calls()
	require.Len(t, calls, 1)
	assert.Equal(t, "gemini-1.5-flash", calls[0].Model)
}

func TestDecompose_deterministic(t *testing.T) {
	d := newDecomposer(t, llmtest.New(comparePlan))
	a := d.Decompose(context.Background(), "Compare the population of Atlanta and Toronto?")
	b := d.Decompose(context.Background(), "Compare the population of Atlanta and Toronto?")
	assert.Equal(t, a, b)
}

func TestDecompose_failuresYieldEmptyPlan(t *testing.T) {
	tests := map[string]*llmtest.Model{
		"gateway failure": llmtest.New("").OnError("user question", errors.New("unreachable")),
		"prose":           llmtest.New("I think you should look at Atlanta."),
		"wrong shape":     llmtest.New(`{"plan": []}`),
		"oracle panic":    llmtest.New("").OnPanic("user question", "provider bug"),
	}
	for name, model := range tests {
		t.Run(name, func(t *testing.T) {
			p := newDecomposer(t, model).Decompose(context.Background(), "Compare Atlanta and Toronto")
			assert.NotNil(t, p)
			assert.Empty(t, p)
		})
	}
}

func TestDecompose_policy(t *testing.T) {
	raw := `{"subquestion_bundle_list": [
		{"question": "Population of Paris?", "function": "vector_retrieval", "file_name": "Paris"},
		{"question": "Population of Boston?", "function": "vector_retrieval", "file_name": "Boston"}
	]}`
	lenient := newDecomposer(t, llmtest.New(raw)).Decompose(context.Background(), "q")
	require.Len(t, lenient, 1)
	assert.Equal(t, plan.DocumentID("Boston"), lenient[0].Target)

	strict := newDecomposer(t, llmtest.New(raw), WithPolicy(plan.Strict)).Decompose(context.Background(), "q")
	assert.Empty(t, strict)
}

func TestUserPrompt(t *testing.T) {
	d := newDecomposer(t, llmtest.New(""))
	prompt, err := d.UserPrompt("Which city is older, Boston or Chicago?")
	require.NoError(t, err)

	assert.Contains(t, prompt, "We have a database of Wikipedia articles about cities.")
	assert.Contains(t, prompt, "Here is the user question: Which city is older, Boston or Chicago?")
	assert.Contains(t, prompt, "Compare the population of Atlanta and Toronto?")
	assert.Contains(t, prompt, "Summarize the history of Chicago and Houston.")
	assert.Contains(t, prompt, `"file_name":"Atlanta"`)
	assert.Contains(t, prompt, `"function":"llm_retrieval"`)
	assert.Contains(t, prompt, "'Toronto', 'Chicago', 'Houston', 'Boston', 'Atlanta'")
	assert.Contains(t, prompt, "'vector_retrieval', 'llm_retrieval'")
}

func TestDecompose_sendsSystemPrompt(t *testing.T) {
	model := llmtest.New(comparePlan)
	newDecomposer(t, model).Decompose(context.Background(), "q")
	calls := model.Calls()
	require.Len(t, calls, 1)
	assert.Contains(t, calls[0].Prompt, "Return only a pure JSON object")
}

func TestDefaultExamples_smallVocabulary(t *testing.T) {
	v, err := plan.NewVocabulary([]string{"Only"})
	require.NoError(t, err)
	examples := DefaultExamples(v)
	require.Len(t, examples, 2)
	for _, ex := range examples {
		for _, u := range ex.Plan {
			assert.Equal(t, plan.DocumentID("Only"), u.Target)
		}
	}
}

func TestDecompose_examplesAreValidPlans(t *testing.T) {
	v := cityVocab(t)
	for _, ex := range DefaultExamples(v) {
		raw, err := plan.Encode(ex.Plan)
		require.NoError(t, err)
		parsed, _, err := plan.Parse(raw, v, plan.Strict)
		require.NoError(t, err)
		assert.Equal(t, ex.Plan, parsed)
	}
}
