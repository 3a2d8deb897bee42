package formbot

import (
	"bytes"
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/text/language"

	"github.com/roach88/convoscript/internal/formspec"
	"github.com/roach88/convoscript/internal/harness"
	"github.com/roach88/convoscript/internal/ir"
	"github.com/roach88/convoscript/internal/session"
)

const simpleFormSource = `
form: {
	name: "SimpleForm"
	fields: [
		{name: "Text", type: "text"},
		{name: "Integer", type: "integer", min: 0, max: 100},
		{name: "Float", type: "float"},
		{name: "SomeChoices", type: "choice", choices: ["One", "Two", "Three"]},
		{name: "Date", type: "date", optional: true},
	]
}
`

const choiceButtons = `{"buttons":[{"title":"One","value":"One"},{"title":"Two","value":"Two"},{"title":"Three","value":"Three"}],"field":"SomeChoices"}`

func simpleForm(t *testing.T) *formspec.Form {
	t.Helper()
	form, err := formspec.CompileString(simpleFormSource, "simple.cue")
	require.NoError(t, err)
	return form
}

func TestSimpleFormConversation(t *testing.T) {
	err := harness.AssertConversation(context.Background(), Factory(simpleForm(t)), session.Config{Locale: "en-us"}, nil,
		harness.Say("Hi", "Please enter text"),
		harness.Say("some text here", "Please enter integer"),
		harness.Say("?", "Enter a whole number between 0 and 100. You can also type: back, help, quit, status.", "Please enter integer"),
		harness.Say("99", "Please enter float"),
		harness.Say("back", "Current value: 99", "Please enter integer"),
		harness.Say("c", `"c" is not a valid value for integer.`, "Current value: 99", "Please enter integer"),
		harness.Say("50", "Please enter float"),
		harness.Say("1.5", "Please select some choices", choiceButtons),
		harness.Say("one", "Please enter date"),
		harness.Say("status", "Current answers:\ntext: some text here\ninteger: 50\nfloat: 1.5\nsome choices: One\ndate: Unspecified", "Please enter date"),
		harness.Say("1/1/2016", "Thank you! Your answers have been recorded."),
		harness.Say("again", "The form is already complete."),
	)
	require.NoError(t, err)
}

func TestQuitFailsTheTurn(t *testing.T) {
	err := harness.AssertConversation(context.Background(), Factory(simpleForm(t)), session.Config{Locale: "en-us"}, nil,
		harness.Say("Hi", "Please enter text"),
		harness.Say("quit", "Form quit."),
	)
	require.NoError(t, err)
}

func TestFrenchConversation(t *testing.T) {
	err := harness.AssertConversation(context.Background(), Factory(simpleForm(t)), session.Config{Locale: "fr"}, nil,
		harness.Say("Bonjour", "Veuillez saisir text"),
		harness.Say("du texte", "Veuillez saisir integer"),
		harness.Say("x", "« x » n'est pas une valeur valide pour integer.", "Veuillez saisir integer"),
		harness.Say("7", "Veuillez saisir float"),
		harness.Say("1,5", "Veuillez sélectionner some choices", choiceButtons),
		harness.Say("Trois", "« Trois » n'est pas une valeur valide pour some choices.", "Veuillez sélectionner some choices", choiceButtons),
		harness.Say("3", "Veuillez saisir date"),
		harness.Say("31/1/2016", "Merci ! Vos réponses ont été enregistrées."),
		harness.Say("quit", "Le formulaire est déjà terminé."),
	)
	require.NoError(t, err)
}

func TestEntityPrefill(t *testing.T) {
	cfg := session.Config{
		Locale: "en-us",
		Entities: []session.EntityHint{
			{Type: "Text", Entity: "prefilled"},
			{Type: "Integer", Entity: "500"},
			{Type: "Unknown", Entity: "x"},
		},
	}

	out := session.NewOutbox()
	b, err := New(simpleForm(t), cfg, out)
	require.NoError(t, err)

	require.NoError(t, b.Post(context.Background(), "Hi"))
	replies := out.DrainAll()
	require.Len(t, replies, 1)
	assert.Equal(t, "Please enter integer", replies[0].Text)

	assert.Equal(t, ir.IRObject{"Text": ir.IRString("prefilled")}, b.Snapshot())
}

func TestInitialStateWins(t *testing.T) {
	cfg := session.Config{
		State:    ir.IRObject{"Text": ir.IRString("from state"), "Integer": ir.IRInt(5)},
		Entities: []session.EntityHint{{Type: "Text", Entity: "from entity"}},
	}

	out := session.NewOutbox()
	b, err := New(simpleForm(t), cfg, out)
	require.NoError(t, err)

	require.NoError(t, b.Post(context.Background(), "Hi"))
	replies := out.DrainAll()
	require.Len(t, replies, 1)
	assert.Equal(t, "Please enter float", replies[0].Text)

	snap := b.Snapshot().(ir.IRObject)
	assert.Equal(t, ir.IRString("from state"), snap["Text"])

	// the snapshot is a copy
	snap["Text"] = ir.IRString("mutated")
	assert.Equal(t, ir.IRString("from state"), b.Snapshot().(ir.IRObject)["Text"])
}

func TestSkipOptionalField(t *testing.T) {
	cfg := session.Config{
		Locale:  "en-us",
		State:   ir.IRObject{"Text": ir.IRString("a"), "Integer": ir.IRInt(1), "Float": ir.IRFloat(2)},
		Options: map[string]any{"status_on_complete": true},
	}
	err := harness.AssertConversation(context.Background(), Factory(simpleForm(t)), cfg, nil,
		harness.Say("Hi", "Please select some choices", choiceButtons),
		harness.Say("skip", "some choices is required.", "Please select some choices", choiceButtons),
		harness.Say("tw", "Please enter date"),
		harness.Say("help", "Enter a date such as 1/31/2016. You can also type: back, help, quit, skip, status.", "Please enter date"),
		harness.Say("skip",
			"Thank you! Your answers have been recorded.",
			"Current answers:\ntext: a\ninteger: 1\nfloat: 2\nsome choices: Two\ndate: No preference"),
	)
	require.NoError(t, err)
}

func TestTextPromptStyle(t *testing.T) {
	form, err := formspec.CompileString(`form: {name: "F", fields: [{name: "Size", type: "choice", choices: ["Small", "Large"]}]}`, "f.cue")
	require.NoError(t, err)

	cfg := session.Config{Options: map[string]any{"prompt_style": "text"}}
	err = harness.AssertConversation(context.Background(), Factory(form), cfg, nil,
		harness.Say("Hi", "Please select size (1. Small, 2. Large)"),
		harness.Say("3", `"3" is not a valid value for size.`, "Please select size (1. Small, 2. Large)"),
		harness.Say("2", "Thank you! Your answers have been recorded."),
	)
	require.NoError(t, err)
}

func TestBackAtFirstField(t *testing.T) {
	err := harness.AssertConversation(context.Background(), Factory(simpleForm(t)), session.Config{}, nil,
		harness.Say("Hi", "Please enter text"),
		harness.Say("back", "There is no previous field.", "Please enter text"),
	)
	require.NoError(t, err)
}

func TestRecordAndVerifyWithSnapshot(t *testing.T) {
	h := harness.New(Factory(simpleForm(t)), harness.WithSnapshot(true))
	script := harness.Script{
		Name:   "simple",
		Locale: "en-us",
		Inputs: []string{"Hi", "some text here"},
	}

	var buf bytes.Buffer
	require.NoError(t, h.RecordTo(context.Background(), &buf, script))

	expected := "en-us\n{}\n[]\n" +
		"FromUser:\"Hi\"\n1\nToUserText:\"Please enter text\"\nState:{}\n" +
		"FromUser:\"some text here\"\n1\nToUserText:\"Please enter integer\"\nState:{\"Text\":\"some text here\"}\n"
	assert.Equal(t, expected, buf.String())

	require.NoError(t, h.VerifyFrom(context.Background(), bytes.NewReader(buf.Bytes()), script, nil))
}

func TestNewRejectsBadInput(t *testing.T) {
	_, err := New(nil, session.Config{}, session.NewOutbox())
	require.Error(t, err)

	_, err = New(simpleForm(t), session.Config{Options: map[string]any{"prompt_style": "carousel"}}, session.NewOutbox())
	require.Error(t, err)
}

func TestDecodeOptions(t *testing.T) {
	opts, err := DecodeOptions(nil)
	require.NoError(t, err)
	assert.Equal(t, DefaultOptions(), opts)

	opts, err = DecodeOptions(map[string]any{"prompt_style": "text", "status_on_complete": "true"})
	require.NoError(t, err)
	assert.Equal(t, Options{PromptStyle: PromptText, StatusOnComplete: true}, opts)

	_, err = DecodeOptions(map[string]any{"promptstyle": "text", "colour": "red"})
	require.Error(t, err)
}

func TestMatchLocale(t *testing.T) {
	assert.Equal(t, language.English, matchLocale("en-us"))
	assert.Equal(t, language.French, matchLocale("fr-FR"))
	assert.Equal(t, language.French, matchLocale("fr"))
	assert.Equal(t, language.English, matchLocale("de"))
	assert.Equal(t, language.English, matchLocale(""))
}

func TestParseValue(t *testing.T) {
	form := simpleForm(t)
	field := func(name string) formspec.Field {
		f, ok := form.Field(name)
		require.True(t, ok)
		return f
	}

	tests := []struct {
		name  string
		field string
		input string
		tag   language.Tag
		want  ir.IRValue
	}{
		{"text trimmed", "Text", "  hello ", language.English, ir.IRString("hello")},
		{"integer", "Integer", "42", language.English, ir.IRInt(42)},
		{"float", "Float", "2.25", language.English, ir.IRFloat(2.25)},
		{"french float", "Float", "2,25", language.French, ir.IRFloat(2.25)},
		{"choice by number", "SomeChoices", "3", language.English, ir.IRString("Three")},
		{"choice by name", "SomeChoices", "TWO", language.English, ir.IRString("Two")},
		{"choice by prefix", "SomeChoices", "o", language.English, ir.IRString("One")},
		{"us date", "Date", "1/31/2016", language.English, ir.IRString("2016-01-31")},
		{"long date", "Date", "January 31, 2016", language.English, ir.IRString("2016-01-31")},
		{"french date", "Date", "31/1/2016", language.French, ir.IRString("2016-01-31")},
		{"iso date", "Date", "2016-01-31", language.French, ir.IRString("2016-01-31")},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := parseValue(field(tt.field), tt.input, tt.tag)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}

	invalid := []struct {
		field string
		input string
	}{
		{"Text", "   "},
		{"Integer", "101"},
		{"Integer", "-1"},
		{"Integer", "1.5"},
		{"Float", "NaN"},
		{"SomeChoices", "t"},
		{"SomeChoices", "0"},
		{"Date", "31/1/2016"},
	}
	for _, tt := range invalid {
		_, err := parseValue(field(tt.field), tt.input, language.English)
		assert.Error(t, err, "%s %q", tt.field, tt.input)
	}
}

func TestParseChoiceNormalizesAccents(t *testing.T) {
	choices := []string{"Caf\u00e9", "Tea"}

	got, err := parseChoice(choices, "cafe\u0301")
	require.NoError(t, err)
	assert.Equal(t, ir.IRString("Caf\u00e9"), got, "stored value keeps the option's own spelling")

	got, err = parseChoice([]string{"Cafe\u0301", "Tea"}, "caf\u00e9")
	require.NoError(t, err)
	assert.Equal(t, ir.IRString("Cafe\u0301"), got)

	got, err = parseChoice(choices, "ca")
	require.NoError(t, err)
	assert.Equal(t, ir.IRString("Caf\u00e9"), got)
}
