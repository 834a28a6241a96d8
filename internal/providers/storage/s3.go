// Package storage adapts an S3-compatible object store into a
// query-orchestrator provider: two read-only tools (list_objects,
// get_object_text) scoped to one bucket and prefix.
package storage

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"

	orcherrors "github.com/nexusquery/orchestrator/internal/errors"
	gateway "github.com/nexusquery/orchestrator/internal/toolgateway"
	"github.com/nexusquery/orchestrator/pkg/models"
)

// API is the subset of the S3 client this provider calls. Narrowed to allow
// a test double in place of *s3.Client.
type API interface {
	ListObjectsV2(ctx context.Context, input *s3.ListObjectsV2Input, opts ...func(*s3.Options)) (*s3.ListObjectsV2Output, error)
	GetObject(ctx context.Context, input *s3.GetObjectInput, opts ...func(*s3.Options)) (*s3.GetObjectOutput, error)
}

var _ API = (*s3.Client)(nil)

const maxTextObjectBytes = 1 << 20 // 1 MiB

var tools = []models.ToolDescriptor{
	{
		Name:        "list_objects",
		Description: "List object keys under the connector's configured prefix",
		InputSchema: map[string]any{
			"type": "object",
			"properties": map[string]any{
				"subpath": map[string]any{"type": "string"},
				"limit":   map[string]any{"type": "integer", "minimum": 1, "maximum": 1000},
			},
		},
	},
	{
		Name:        "get_object_text",
		Description: "Read an object's body as text (rejects objects over 1MiB)",
		InputSchema: map[string]any{
			"type":     "object",
			"required": []string{"key"},
			"properties": map[string]any{
				"key": map[string]any{"type": "string"},
			},
		},
	},
}

// Config names the bucket and region this connector serves. Region defaults
// to us-east-1 when empty.
type Config struct {
	Bucket       string
	Region       string
	Endpoint     string
	Prefix       string
	UsePathStyle bool
}

// Connector is the S3 ProviderConnector. newClient lets tests substitute a
// fake API without real AWS credentials.
type Connector struct {
	cfg       Config
	newClient func(credentials map[string]string) (API, error)
}

// New builds an S3 connector for cfg, using the real *s3.Client.
func New(cfg Config) *Connector {
	region := strings.TrimSpace(cfg.Region)
	if region == "" {
		region = "us-east-1"
	}
	cfg.Region = region
	cfg.Prefix = strings.Trim(cfg.Prefix, "/")

	return &Connector{
		cfg: cfg,
		newClient: func(creds map[string]string) (API, error) {
			return newRealClient(cfg, creds)
		},
	}
}

func newRealClient(cfg Config, creds map[string]string) (API, error) {
	ctx := context.Background()
	loadOptions := []func(*config.LoadOptions) error{
		config.WithRegion(cfg.Region),
	}

	accessKeyID := creds["aws_access_key_id"]
	secretAccessKey := creds["aws_secret_access_key"]
	if accessKeyID != "" && secretAccessKey != "" {
		loadOptions = append(loadOptions, config.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(accessKeyID, secretAccessKey, ""),
		))
	}

	awsCfg, err := config.LoadDefaultConfig(ctx, loadOptions...)
	if err != nil {
		return nil, fmt.Errorf("load aws config: %w", err)
	}

	endpoint := strings.TrimSpace(cfg.Endpoint)
	client := s3.NewFromConfig(awsCfg, func(o *s3.Options) {
		if endpoint != "" {
			o.BaseEndpoint = aws.String(endpoint)
		}
		if cfg.UsePathStyle {
			o.UsePathStyle = true
		}
	})
	return client, nil
}

var _ gateway.ProviderConnector = (*Connector)(nil)

// ProviderID identifies this connector.
func (c *Connector) ProviderID() string { return "storage" }

// Connect builds a client scoped to the given credentials and returns a
// session bound to this connector's bucket.
func (c *Connector) Connect(ctx context.Context, principalID string, creds map[string]string) (gateway.Session, error) {
	if creds["aws_access_key_id"] == "" || creds["aws_secret_access_key"] == "" {
		return nil, orcherrors.New(orcherrors.MissingCredentials, "storage: missing aws_access_key_id/aws_secret_access_key credential")
	}
	api, err := c.newClient(creds)
	if err != nil {
		return nil, orcherrors.Wrap(orcherrors.ConnectorUnreachable, "storage: client setup failed", err)
	}
	return &session{api: api, bucket: c.cfg.Bucket, prefix: c.cfg.Prefix}, nil
}

type session struct {
	api    API
	bucket string
	prefix string
}

func (s *session) ListTools(ctx context.Context) ([]models.ToolDescriptor, error) {
	return tools, nil
}

func (s *session) CallTool(ctx context.Context, tool string, args map[string]any) (any, error) {
	switch tool {
	case "list_objects":
		return s.listObjects(ctx, args)
	case "get_object_text":
		return s.getObjectText(ctx, args)
	default:
		return nil, orcherrors.New(orcherrors.ValidationError, "storage: unknown tool "+tool)
	}
}

func (s *session) objectKey(subpath string) string {
	subpath = strings.TrimPrefix(subpath, "/")
	if s.prefix == "" {
		return subpath
	}
	if subpath == "" {
		return s.prefix
	}
	return s.prefix + "/" + subpath
}

func (s *session) listObjects(ctx context.Context, args map[string]any) (any, error) {
	subpath, _ := args["subpath"].(string)
	limit := int32(200)
	if l, ok := args["limit"].(float64); ok && l > 0 {
		limit = int32(l)
	}

	prefix := s.objectKey(subpath)
	out, err := s.api.ListObjectsV2(ctx, &s3.ListObjectsV2Input{
		Bucket:  aws.String(s.bucket),
		Prefix:  aws.String(prefix),
		MaxKeys: aws.Int32(limit),
	})
	if err != nil {
		return nil, orcherrors.Wrap(orcherrors.ToolExecutionError, "storage: list_objects failed", err)
	}

	if len(out.Contents) == 0 {
		return "no objects found under that prefix", nil
	}
	var b strings.Builder
	for i, obj := range out.Contents {
		if i > 0 {
			b.WriteByte('\n')
		}
		key := aws.ToString(obj.Key)
		b.WriteString(strings.TrimPrefix(key, s.prefix+"/"))
		b.WriteString(fmt.Sprintf(" (%d bytes)", obj.Size))
	}
	return b.String(), nil
}

func (s *session) getObjectText(ctx context.Context, args map[string]any) (any, error) {
	key, _ := args["key"].(string)
	if key == "" {
		return nil, orcherrors.New(orcherrors.ValidationError, "storage: get_object_text requires key")
	}

	out, err := s.api.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(s.objectKey(key)),
	})
	if err != nil {
		return nil, orcherrors.Wrap(orcherrors.ToolExecutionError, "storage: get_object_text failed", err)
	}
	defer out.Body.Close()

	limited := io.LimitReader(out.Body, maxTextObjectBytes+1)
	var buf bytes.Buffer
	if _, err := buf.ReadFrom(limited); err != nil {
		return nil, orcherrors.Wrap(orcherrors.ToolExecutionError, "storage: get_object_text read failed", err)
	}
	if buf.Len() > maxTextObjectBytes {
		return nil, orcherrors.New(orcherrors.ValidationError, "storage: object exceeds the 1MiB text limit")
	}
	return buf.String(), nil
}

func (s *session) Close(ctx context.Context) error { return nil }
