package storage

import (
	"context"
	"errors"
	"io"
	"strings"
	"testing"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"
)

type fakeAPI struct {
	listFunc func(ctx context.Context, input *s3.ListObjectsV2Input, opts ...func(*s3.Options)) (*s3.ListObjectsV2Output, error)
	getFunc  func(ctx context.Context, input *s3.GetObjectInput, opts ...func(*s3.Options)) (*s3.GetObjectOutput, error)
}

func (f *fakeAPI) ListObjectsV2(ctx context.Context, input *s3.ListObjectsV2Input, opts ...func(*s3.Options)) (*s3.ListObjectsV2Output, error) {
	return f.listFunc(ctx, input, opts...)
}

func (f *fakeAPI) GetObject(ctx context.Context, input *s3.GetObjectInput, opts ...func(*s3.Options)) (*s3.GetObjectOutput, error) {
	return f.getFunc(ctx, input, opts...)
}

func newTestConnector(api API, cfg Config) *Connector {
	return &Connector{cfg: cfg, newClient: func(map[string]string) (API, error) { return api, nil }}
}

func validCreds() map[string]string {
	return map[string]string{"aws_access_key_id": "AKIA", "aws_secret_access_key": "secret"}
}

func TestConnect_MissingCredentialsIsMissingCredentials(t *testing.T) {
	c := New(Config{Bucket: "docs"})
	_, err := c.Connect(context.Background(), "alice", map[string]string{})
	if err == nil || !strings.Contains(err.Error(), "aws_access_key_id") {
		t.Fatalf("Connect error = %v, want an aws_access_key_id complaint", err)
	}
}

func TestListObjects_FormatsResults(t *testing.T) {
	fake := &fakeAPI{
		listFunc: func(ctx context.Context, input *s3.ListObjectsV2Input, opts ...func(*s3.Options)) (*s3.ListObjectsV2Output, error) {
			return &s3.ListObjectsV2Output{Contents: []types.Object{
				{Key: aws.String("reports/q1.txt"), Size: aws.Int64(42)},
			}}, nil
		},
	}
	c := newTestConnector(fake, Config{Bucket: "docs", Prefix: "reports"})
	sess, err := c.Connect(context.Background(), "alice", validCreds())
	if err != nil {
		t.Fatalf("Connect: %v", err)
	}
	out, err := sess.CallTool(context.Background(), "list_objects", map[string]any{})
	if err != nil {
		t.Fatalf("CallTool: %v", err)
	}
	if !strings.Contains(out.(string), "q1.txt") {
		t.Errorf("result = %q, want it to contain the object key", out)
	}
}

func TestGetObjectText_MissingKeyIsValidationError(t *testing.T) {
	c := newTestConnector(&fakeAPI{}, Config{Bucket: "docs"})
	sess, _ := c.Connect(context.Background(), "alice", validCreds())
	_, err := sess.CallTool(context.Background(), "get_object_text", map[string]any{})
	if err == nil {
		t.Fatal("expected a validation error for a missing key")
	}
}

func TestGetObjectText_ReturnsBody(t *testing.T) {
	fake := &fakeAPI{
		getFunc: func(ctx context.Context, input *s3.GetObjectInput, opts ...func(*s3.Options)) (*s3.GetObjectOutput, error) {
			return &s3.GetObjectOutput{Body: io.NopCloser(strings.NewReader("hello world"))}, nil
		},
	}
	c := newTestConnector(fake, Config{Bucket: "docs"})
	sess, _ := c.Connect(context.Background(), "alice", validCreds())
	out, err := sess.CallTool(context.Background(), "get_object_text", map[string]any{"key": "a.txt"})
	if err != nil {
		t.Fatalf("CallTool: %v", err)
	}
	if out.(string) != "hello world" {
		t.Errorf("result = %q, want %q", out, "hello world")
	}
}

func TestGetObjectText_WrapsConnectorError(t *testing.T) {
	fake := &fakeAPI{
		getFunc: func(ctx context.Context, input *s3.GetObjectInput, opts ...func(*s3.Options)) (*s3.GetObjectOutput, error) {
			return nil, errors.New("access denied")
		},
	}
	c := newTestConnector(fake, Config{Bucket: "docs"})
	sess, _ := c.Connect(context.Background(), "alice", validCreds())
	_, err := sess.CallTool(context.Background(), "get_object_text", map[string]any{"key": "a.txt"})
	if err == nil || !strings.Contains(err.Error(), "get_object_text failed") {
		t.Fatalf("err = %v, want a wrapped get_object_text failure", err)
	}
}

func TestCallTool_UnknownToolIsValidationError(t *testing.T) {
	c := newTestConnector(&fakeAPI{}, Config{Bucket: "docs"})
	sess, _ := c.Connect(context.Background(), "alice", validCreds())
	_, err := sess.CallTool(context.Background(), "delete_bucket", nil)
	if err == nil {
		t.Fatal("expected an error for an unknown tool")
	}
}
