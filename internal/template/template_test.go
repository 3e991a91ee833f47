package template

import (
	"encoding/json"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/BDNK1/schedstack/internal/config"
	"github.com/BDNK1/schedstack/internal/definition"
)

func defaultDefinition(t *testing.T) *definition.Definition {
	t.Helper()
	cfg, err := config.Load(t.TempDir(), map[string]string{"name": "sms-stack"})
	require.NoError(t, err)
	def, err := definition.FromConfig(cfg, "/project/handlers")
	require.NoError(t, err)
	return def
}

var testAsset = Asset{Hash: "abc123", Key: "abc123.zip"}

func TestSynthesize_Resources(t *testing.T) {
	tmpl, err := Synthesize(defaultDefinition(t), testAsset)
	require.NoError(t, err)

	assert.Len(t, tmpl.Resources(TypeFunction), 4)
	assert.Len(t, tmpl.Resources(TypeLogGroup), 4)
	assert.Len(t, tmpl.Resources(TypeRole), 6)
	assert.Len(t, tmpl.Resources(TypePolicy), 2)
	assert.Len(t, tmpl.Resources(TypeStateMachine), 1)
	assert.Len(t, tmpl.Resources(TypeRule), 1)
	assert.Len(t, tmpl.Resources(""), 18)

	for id, fn := range tmpl.Resources(TypeFunction) {
		assert.Equal(t, 128, fn.Search("Properties", "MemorySize").Data(), id)
		assert.Equal(t, "nodejs20.x", fn.Search("Properties", "Runtime").Data(), id)
		assert.Equal(t, "abc123.zip", fn.Search("Properties", "Code", "S3Key").Data(), id)
		assert.Equal(t, Sub(DefaultAssetBucket), fn.Search("Properties", "Code", "S3Bucket").Data(), id)
	}

	for id, lg := range tmpl.Resources(TypeLogGroup) {
		assert.Equal(t, 1, lg.Search("Properties", "RetentionInDays").Data(), id)
	}

	fn := tmpl.Doc().Search("Resources", LogicalID("sendNotification"))
	assert.Equal(t, "send-notification.handler", fn.Search("Properties", "Handler").Data())
	assert.Equal(t, GetAtt(LogicalID("sendNotification", "ServiceRole"), "Arn"), fn.Search("Properties", "Role").Data())
}

func TestSynthesize_ScheduleRule(t *testing.T) {
	tmpl, err := Synthesize(defaultDefinition(t), testAsset)
	require.NoError(t, err)

	rule := tmpl.Doc().Search("Resources", LogicalID("scheduleRule"))
	require.NotNil(t, rule)
	assert.Equal(t, "cron(0/5 * * * ? *)", rule.Search("Properties", "ScheduleExpression").Data())
	assert.Equal(t, "ENABLED", rule.Search("Properties", "State").Data())

	targets := rule.Search("Properties", "Targets").Children()
	require.Len(t, targets, 1)
	assert.Equal(t, Ref(LogicalID("StateMachine")), targets[0].Search("Arn").Data())
}

func TestSynthesize_StateMachineDefinition(t *testing.T) {
	tmpl, err := Synthesize(defaultDefinition(t), testAsset)
	require.NoError(t, err)

	machine := tmpl.Doc().Search("Resources", LogicalID("StateMachine"), "Properties", "DefinitionString")
	require.NotNil(t, machine)

	// Substitute every intrinsic with a marker and check the resulting ASL
	args := machine.Search("Fn::Join").Children()
	require.Len(t, args, 2)

	var sb strings.Builder
	for _, part := range args[1].Children() {
		switch v := part.Data().(type) {
		case string:
			sb.WriteString(v)
		case map[string]any:
			if getAtt, ok := v["Fn::GetAtt"].([]any); ok {
				sb.WriteString("fn:" + getAtt[0].(string))
			} else {
				sb.WriteString("intrinsic")
			}
		}
	}

	var doc struct {
		StartAt        string
		TimeoutSeconds int
		States         map[string]map[string]any
	}
	require.NoError(t, json.Unmarshal([]byte(sb.String()), &doc))

	assert.Equal(t, "Query Sms Table", doc.StartAt)
	assert.Equal(t, 300, doc.TimeoutSeconds)
	assert.Len(t, doc.States, 5)
	assert.Equal(t, float64(1), doc.States["Wait 1 Second"]["Seconds"])
	assert.Equal(t, "Query Customer Table", doc.States["Wait 1 Second"]["Next"])
	assert.Equal(t, true, doc.States["Update Sms Table"]["End"])

	params := doc.States["Send Notification"]["Parameters"].(map[string]any)
	assert.Equal(t, "fn:"+LogicalID("sendNotification"), params["FunctionName"])
	assert.Equal(t, "$.Payload", doc.States["Send Notification"]["OutputPath"])
}

func TestSynthesize_DisabledRuleAndCustomBucket(t *testing.T) {
	def := defaultDefinition(t)
	def.Rule.Enabled = false

	tmpl, err := Synthesize(def, Asset{Hash: "h", Bucket: "staging-assets", Key: "lambda/h.zip"})
	require.NoError(t, err)

	rule := tmpl.Doc().Search("Resources", LogicalID("scheduleRule"))
	assert.Equal(t, "DISABLED", rule.Search("Properties", "State").Data())

	for _, fn := range tmpl.Resources(TypeFunction) {
		assert.Equal(t, "staging-assets", fn.Search("Properties", "Code", "S3Bucket").Data())
		assert.Equal(t, "lambda/h.zip", fn.Search("Properties", "Code", "S3Key").Data())
	}
}

func TestRender_Deterministic(t *testing.T) {
	for _, format := range []string{FormatJSON, FormatYAML} {
		t.Run(format, func(t *testing.T) {
			first, err := Synthesize(defaultDefinition(t), testAsset)
			require.NoError(t, err)
			second, err := Synthesize(defaultDefinition(t), testAsset)
			require.NoError(t, err)

			a, err := first.Render(format)
			require.NoError(t, err)
			b, err := second.Render(format)
			require.NoError(t, err)

			assert.Equal(t, string(a), string(b))
		})
	}
}

func TestParse_RoundTrip(t *testing.T) {
	tmpl, err := Synthesize(defaultDefinition(t), testAsset)
	require.NoError(t, err)

	for _, format := range []string{FormatJSON, FormatYAML} {
		data, err := tmpl.Render(format)
		require.NoError(t, err)

		parsed, err := Parse(data)
		require.NoError(t, err, format)
		assert.Len(t, parsed.Resources(TypeFunction), 4, format)
		assert.Equal(t, FormatVersion, parsed.Doc().Search("AWSTemplateFormatVersion").Data(), format)
	}

	_, err = Parse([]byte("- just\n- a list\n"))
	assert.Error(t, err)

	_, err = tmpl.Render("toml")
	assert.Error(t, err)
}

func TestAddResource_DuplicateID(t *testing.T) {
	tmpl := New("")
	require.NoError(t, tmpl.AddResource("A", Resource{Type: TypeRole}))
	assert.Error(t, tmpl.AddResource("A", Resource{Type: TypeRole}))
}

func TestLogicalID(t *testing.T) {
	id := LogicalID("querySmsTable", "ServiceRole")
	assert.True(t, strings.HasPrefix(id, "querySmsTableServiceRole"))
	assert.Len(t, id, len("querySmsTableServiceRole")+8)
	assert.Equal(t, id, LogicalID("querySmsTable", "ServiceRole"))

	// Same characters, different path
	assert.NotEqual(t, LogicalID("a", "bc"), LogicalID("ab", "c"))
	assert.Equal(t, "WaitStep", LogicalID("Wait Step!")[:8])

	long := LogicalID(strings.Repeat("x", 300))
	assert.Len(t, long, 255)
}

func TestTokens_Resolve(t *testing.T) {
	var tokens Tokens

	plain, err := tokens.Resolve("no tokens here")
	require.NoError(t, err)
	assert.Equal(t, "no tokens here", plain)

	fn := tokens.Token(GetAtt("Fn1", "Arn"))
	partition := tokens.Token(Join("", "arn:", Partition(), ":states:::lambda:invoke"))

	resolved, err := tokens.Resolve(`{"r":"` + partition + `","f":"` + fn + `"}`)
	require.NoError(t, err)

	expected := Join("",
		`{"r":"arn:`,
		Partition(),
		`:states:::lambda:invoke","f":"`,
		GetAtt("Fn1", "Arn"),
		`"}`,
	)
	assert.Equal(t, expected, resolved)

	_, err = tokens.Resolve("${Token[42]}")
	assert.Error(t, err)
}

func TestSynthesize_Timeout(t *testing.T) {
	def := defaultDefinition(t)
	def.Workflow.Timeout = 90 * time.Second

	tmpl, err := Synthesize(def, testAsset)
	require.NoError(t, err)

	data, err := tmpl.Render(FormatJSON)
	require.NoError(t, err)
	assert.Contains(t, string(data), `\"TimeoutSeconds\":90`)
}

func TestStateMachineDefinition(t *testing.T) {
	tmpl, err := Synthesize(defaultDefinition(t), testAsset)
	require.NoError(t, err)

	id, doc, err := tmpl.StateMachineDefinition()
	require.NoError(t, err)
	assert.Equal(t, LogicalID("StateMachine"), id)

	assert.Equal(t, []string{
		"Query Sms Table",
		"Wait 1 Second",
		"Query Customer Table",
		"Send Notification",
		"Update Sms Table",
	}, StatesInOrder(doc))

	fn := doc.Search("States", "Query Sms Table", "Parameters", "FunctionName").Data()
	assert.Equal(t, "${"+LogicalID("querySmsTable")+".Arn}", fn)
	assert.Equal(t, "arn:${AWS::Partition}:states:::lambda:invoke", doc.Search("States", "Query Sms Table", "Resource").Data())

	assert.Equal(t, []string{LogicalID("StateMachine")}, tmpl.ResourceIDs(TypeStateMachine))

	_, _, err = New("").StateMachineDefinition()
	assert.Error(t, err)
}
