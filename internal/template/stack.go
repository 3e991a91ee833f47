package template

import (
	"fmt"

	"github.com/BDNK1/schedstack/internal/asl"
	"github.com/BDNK1/schedstack/internal/definition"
)

// Resource types
const (
	TypeRole         = "AWS::IAM::Role"
	TypePolicy       = "AWS::IAM::Policy"
	TypeFunction     = "AWS::Lambda::Function"
	TypeLogGroup     = "AWS::Logs::LogGroup"
	TypeStateMachine = "AWS::StepFunctions::StateMachine"
	TypeRule         = "AWS::Events::Rule"
)

// DefaultAssetBucket is the bootstrap staging bucket used when none is configured.
const DefaultAssetBucket = "cdk-hnb659fds-assets-${AWS::AccountId}-${AWS::Region}"

// Output names
const (
	OutputStateMachineArn = "StateMachineArn"
	OutputScheduleRule    = "ScheduleRuleName"
)

// Asset locates the packaged handler code in the staging bucket.
type Asset struct {
	Hash   string
	Bucket string // empty selects DefaultAssetBucket
	Key    string
}

// Synthesize builds the template for def.
func Synthesize(def *definition.Definition, asset Asset) (*Template, error) {
	s := &synthesizer{
		def:         def,
		asset:       asset,
		tmpl:        New(fmt.Sprintf("%s: %s started by %s", def.Stack, def.Workflow.Name, def.Rule.ScheduleExpression())),
		functionIDs: make(map[string]string, len(def.Units)),
	}

	steps := []func() error{
		s.addFunctions,
		s.addStateMachine,
		s.addRule,
	}
	for _, step := range steps {
		if err := step(); err != nil {
			return nil, err
		}
	}

	return s.tmpl, nil
}

type synthesizer struct {
	def         *definition.Definition
	asset       Asset
	tmpl        *Template
	tokens      Tokens
	functionIDs map[string]string
	machineID   string
}

// FunctionArn implements asl.Resolver
func (s *synthesizer) FunctionArn(unit string) string {
	return s.tokens.Token(GetAtt(s.functionIDs[unit], "Arn"))
}

// LambdaInvokeResource implements asl.Resolver
func (s *synthesizer) LambdaInvokeResource() string {
	return s.tokens.Token(Join("", "arn:", Partition(), ":states:::lambda:invoke"))
}

func (s *synthesizer) assetBucket() any {
	if s.asset.Bucket == "" {
		return Sub(DefaultAssetBucket)
	}
	return s.asset.Bucket
}

func (s *synthesizer) addFunctions() error {
	for _, unit := range s.def.Units {
		roleID := LogicalID(unit.Name, "ServiceRole")
		fnID := LogicalID(unit.Name)
		logID := LogicalID(unit.Name, "LogGroup")

		err := s.tmpl.AddResource(roleID, Resource{
			Type: TypeRole,
			Properties: map[string]any{
				"AssumeRolePolicyDocument": assumeRolePolicy("lambda.amazonaws.com"),
				"ManagedPolicyArns": []any{
					Join("", "arn:", Partition(), ":iam::aws:policy/service-role/AWSLambdaBasicExecutionRole"),
				},
			},
		})
		if err != nil {
			return err
		}

		err = s.tmpl.AddResource(fnID, Resource{
			Type: TypeFunction,
			Properties: map[string]any{
				"Code": map[string]any{
					"S3Bucket": s.assetBucket(),
					"S3Key":    s.asset.Key,
				},
				"Handler":    unit.Handler,
				"MemorySize": unit.MemoryMB,
				"Role":       GetAtt(roleID, "Arn"),
				"Runtime":    unit.Runtime,
			},
			DependsOn: []string{roleID},
			Metadata: map[string]any{
				"schedstack:asset-hash": s.asset.Hash,
			},
		})
		if err != nil {
			return err
		}

		// Log groups outlive the stack, matching the platform's own retention handling
		err = s.tmpl.AddResource(logID, Resource{
			Type: TypeLogGroup,
			Properties: map[string]any{
				"LogGroupName":    Join("", "/aws/lambda/", Ref(fnID)),
				"RetentionInDays": unit.LogRetentionDays,
			},
			DeletionPolicy:      "Retain",
			UpdateReplacePolicy: "Retain",
		})
		if err != nil {
			return err
		}

		s.functionIDs[unit.Name] = fnID
	}
	return nil
}

func (s *synthesizer) addStateMachine() error {
	wf := &s.def.Workflow
	roleID := LogicalID(wf.Name, "Role")
	policyID := LogicalID(wf.Name, "RoleDefaultPolicy")
	s.machineID = LogicalID(wf.Name)

	var invokable []any
	for _, unit := range s.def.Units {
		arn := GetAtt(s.functionIDs[unit.Name], "Arn")
		invokable = append(invokable, arn, Join("", arn, ":*"))
	}

	if err := s.tmpl.AddResource(roleID, Resource{
		Type: TypeRole,
		Properties: map[string]any{
			"AssumeRolePolicyDocument": assumeRolePolicy("states.amazonaws.com"),
		},
	}); err != nil {
		return err
	}

	if err := s.tmpl.AddResource(policyID, Resource{
		Type: TypePolicy,
		Properties: map[string]any{
			"PolicyDocument": policyDocument("lambda:InvokeFunction", invokable),
			"PolicyName":     policyID,
			"Roles":          []any{Ref(roleID)},
		},
	}); err != nil {
		return err
	}

	doc, err := asl.Render(wf, s)
	if err != nil {
		return fmt.Errorf("failed to render workflow %s: %w", wf.Name, err)
	}
	definitionString, err := s.tokens.Resolve(doc.String())
	if err != nil {
		return fmt.Errorf("failed to render workflow %s: %w", wf.Name, err)
	}

	if err := s.tmpl.AddResource(s.machineID, Resource{
		Type: TypeStateMachine,
		Properties: map[string]any{
			"DefinitionString": definitionString,
			"RoleArn":          GetAtt(roleID, "Arn"),
		},
		DependsOn: []string{policyID, roleID},
	}); err != nil {
		return err
	}

	return s.tmpl.AddOutput(OutputStateMachineArn, "ARN of the scheduled state machine", Ref(s.machineID))
}

func (s *synthesizer) addRule() error {
	rule := &s.def.Rule
	roleID := LogicalID(rule.Name, "EventsRole")
	policyID := LogicalID(rule.Name, "EventsRoleDefaultPolicy")
	ruleID := LogicalID(rule.Name)

	if err := s.tmpl.AddResource(roleID, Resource{
		Type: TypeRole,
		Properties: map[string]any{
			"AssumeRolePolicyDocument": assumeRolePolicy("events.amazonaws.com"),
		},
	}); err != nil {
		return err
	}

	if err := s.tmpl.AddResource(policyID, Resource{
		Type: TypePolicy,
		Properties: map[string]any{
			"PolicyDocument": policyDocument("states:StartExecution", []any{Ref(s.machineID)}),
			"PolicyName":     policyID,
			"Roles":          []any{Ref(roleID)},
		},
	}); err != nil {
		return err
	}

	state := "ENABLED"
	if !rule.Enabled {
		state = "DISABLED"
	}

	if err := s.tmpl.AddResource(ruleID, Resource{
		Type: TypeRule,
		Properties: map[string]any{
			"ScheduleExpression": rule.ScheduleExpression(),
			"State":              state,
			"Targets": []any{
				map[string]any{
					"Arn":     Ref(s.machineID),
					"Id":      "Target0",
					"RoleArn": GetAtt(roleID, "Arn"),
				},
			},
		},
	}); err != nil {
		return err
	}

	return s.tmpl.AddOutput(OutputScheduleRule, "Name of the schedule rule", Ref(ruleID))
}

func assumeRolePolicy(service string) map[string]any {
	return map[string]any{
		"Statement": []any{
			map[string]any{
				"Action":    "sts:AssumeRole",
				"Effect":    "Allow",
				"Principal": map[string]any{"Service": service},
			},
		},
		"Version": "2012-10-17",
	}
}

func policyDocument(action string, resources []any) map[string]any {
	var resource any = resources
	if len(resources) == 1 {
		resource = resources[0]
	}
	return map[string]any{
		"Statement": []any{
			map[string]any{
				"Action":   action,
				"Effect":   "Allow",
				"Resource": resource,
			},
		},
		"Version": "2012-10-17",
	}
}
