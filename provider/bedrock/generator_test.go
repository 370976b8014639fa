package bedrock

import (
	"context"
	"errors"
	"testing"

	"pantrygen"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/bedrockruntime"
	"github.com/aws/aws-sdk-go-v2/service/bedrockruntime/document"
	"github.com/aws/aws-sdk-go-v2/service/bedrockruntime/types"
	"github.com/aws/smithy-go"
	"github.com/modelcontextprotocol/go-sdk/jsonschema"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// mockBedrockClient implements bedrockRuntimeClient for testing
type mockBedrockClient struct {
	response *bedrockruntime.ConverseOutput
	err      error
	input    *bedrockruntime.ConverseInput
}

func (m *mockBedrockClient) Converse(ctx context.Context, input *bedrockruntime.ConverseInput, opts ...func(*bedrockruntime.Options)) (*bedrockruntime.ConverseOutput, error) {
	m.input = input
	return m.response, m.err
}

func textOutput(stop types.StopReason, text string) *bedrockruntime.ConverseOutput {
	return &bedrockruntime.ConverseOutput{
		StopReason: stop,
		Output: &types.ConverseOutputMemberMessage{
			Value: types.Message{
				Role:    types.ConversationRoleAssistant,
				Content: []types.ContentBlock{&types.ContentBlockMemberText{Value: text}},
			},
		},
		Usage:   &types.TokenUsage{InputTokens: aws.Int32(10), OutputTokens: aws.Int32(20)},
		Metrics: &types.ConverseMetrics{LatencyMs: aws.Int64(100)},
	}
}

var testSchema = &jsonschema.Schema{
	Type:     "object",
	Required: []string{"status"},
	Properties: map[string]*jsonschema.Schema{
		"status": {Type: "string"},
	},
}

func TestNew(t *testing.T) {
	tests := []struct {
		name     string
		input    Options
		expected Options
	}{
		{
			name:  "empty options uses defaults",
			input: Options{},
			expected: Options{
				ModelID:     defaultModelID,
				MaxTokens:   defaultMaxTokens,
				Temperature: defaultTemperature,
				TopP:        defaultTopP,
			},
		},
		{
			name:     "custom options preserved",
			input:    Options{ModelID: "custom-model", MaxTokens: 4096, Temperature: 0.5, TopP: 0.8},
			expected: Options{ModelID: "custom-model", MaxTokens: 4096, Temperature: 0.5, TopP: 0.8},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			g := New(&mockBedrockClient{}, tt.input)
			assert.Equal(t, tt.expected, g.opts)
			assert.Equal(t, "bedrock:"+tt.expected.ModelID, g.Name())
		})
	}
}

func TestGenerator_Generate(t *testing.T) {
	tests := []struct {
		name         string
		mockResponse *bedrockruntime.ConverseOutput
		mockError    error
		want         map[string]any
		wantKind     pantrygen.FailureKind
	}{
		{
			name: "forced tool call result",
			mockResponse: &bedrockruntime.ConverseOutput{
				StopReason: "tool_use",
				Output: &types.ConverseOutputMemberMessage{
					Value: types.Message{
						Content: []types.ContentBlock{
							&types.ContentBlockMemberToolUse{
								Value: types.ToolUseBlock{
									ToolUseId: aws.String("tu-1"),
									Name:      aws.String(resultToolName),
									Input:     document.NewLazyDocument(map[string]any{"status": "ok", "count": 3}),
								},
							},
						},
					},
				},
			},
			want: map[string]any{"status": "ok", "count": float64(3)},
		},
		{
			name:         "plain text JSON",
			mockResponse: textOutput("end_turn", "Here you go:\n```json\n{\"status\": \"ok\"}\n```"),
			want:         map[string]any{"status": "ok"},
		},
		{
			name:         "unparseable text",
			mockResponse: textOutput("end_turn", "I cannot help with that."),
			wantKind:     pantrygen.FailureMalformed,
		},
		{
			name:         "truncated output",
			mockResponse: textOutput("max_tokens", `{"status": "ok", "days": [`),
			wantKind:     pantrygen.FailureMalformed,
		},
		{
			name:         "content filtered",
			mockResponse: textOutput("content_filtered", ""),
			wantKind:     pantrygen.FailureOther,
		},
		{
			name:      "throttling exception",
			mockError: &types.ThrottlingException{Message: aws.String("slow down")},
			wantKind:  pantrygen.FailureRateLimited,
		},
		{
			name:      "service quota exceeded",
			mockError: &types.ServiceQuotaExceededException{Message: aws.String("quota")},
			wantKind:  pantrygen.FailureRateLimited,
		},
		{
			name:      "generic api throttling code",
			mockError: &smithy.GenericAPIError{Code: "TooManyRequestsException", Message: "busy"},
			wantKind:  pantrygen.FailureRateLimited,
		},
		{
			name:      "other api error",
			mockError: errors.New("connection reset"),
			wantKind:  pantrygen.FailureOther,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			g := New(&mockBedrockClient{response: tt.mockResponse, err: tt.mockError}, Options{})

			got, err := g.Generate(context.Background(), []pantrygen.Message{
				{Role: pantrygen.RoleUser, Content: "plan"},
			}, testSchema)

			if tt.wantKind != pantrygen.FailureNone {
				require.Error(t, err)
				assert.Equal(t, tt.wantKind, pantrygen.ClassifyFailure(err))
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestGenerator_Request(t *testing.T) {
	mock := &mockBedrockClient{response: textOutput("end_turn", `{"status": "ok"}`)}
	g := New(mock, Options{ModelID: "m"})

	_, err := g.Generate(context.Background(), []pantrygen.Message{
		{Role: pantrygen.RoleSystem, Content: "be strict"},
		{Role: pantrygen.RoleUser, Content: "plan"},
		{Role: pantrygen.RoleUser, Content: "fix errors"},
		{Role: pantrygen.RoleAssistant, Content: "{}"},
	}, testSchema)
	require.NoError(t, err)

	in := mock.input
	require.NotNil(t, in)
	assert.Equal(t, "m", aws.ToString(in.ModelId))
	require.Len(t, in.System, 1)
	require.Len(t, in.Messages, 2, "consecutive user turns are merged")
	assert.Equal(t, types.ConversationRoleUser, in.Messages[0].Role)
	assert.Len(t, in.Messages[0].Content, 2)
	assert.Equal(t, types.ConversationRoleAssistant, in.Messages[1].Role)

	require.NotNil(t, in.ToolConfig)
	require.Len(t, in.ToolConfig.Tools, 1)
	spec := in.ToolConfig.Tools[0].(*types.ToolMemberToolSpec)
	assert.Equal(t, resultToolName, aws.ToString(spec.Value.Name))
	choice, ok := in.ToolConfig.ToolChoice.(*types.ToolChoiceMemberTool)
	require.True(t, ok)
	assert.Equal(t, resultToolName, aws.ToString(choice.Value.Name))
}
