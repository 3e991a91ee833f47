// Package publish uploads a synthesized assembly to its staging bucket.
// Objects are content-addressed, so existing keys are left untouched.
package publish

import (
	"bytes"
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	awshttp "github.com/aws/aws-sdk-go-v2/aws/transport/http"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"

	"github.com/BDNK1/schedstack/internal/synth"
	"github.com/BDNK1/schedstack/internal/template"
)

// ObjectStore is the subset of the S3 API used for publishing.
type ObjectStore interface {
	HeadObject(ctx context.Context, in *s3.HeadObjectInput, optFns ...func(*s3.Options)) (*s3.HeadObjectOutput, error)
	PutObject(ctx context.Context, in *s3.PutObjectInput, optFns ...func(*s3.Options)) (*s3.PutObjectOutput, error)
}

// Object is one file to upload.
type Object struct {
	Key         string
	ContentType string
	Body        []byte
}

// Result reports what happened to one object.
type Result struct {
	Key     string
	Skipped bool // already present
}

// Uploader writes objects to one bucket.
type Uploader struct {
	store  ObjectStore
	bucket string
	logger *slog.Logger
}

func NewUploader(store ObjectStore, bucket string, logger *slog.Logger) *Uploader {
	return &Uploader{store: store, bucket: bucket, logger: logger}
}

// Upload puts every object whose key does not exist yet.
func (u *Uploader) Upload(ctx context.Context, objects []Object) ([]Result, error) {
	results := make([]Result, 0, len(objects))

	for _, obj := range objects {
		exists, err := u.exists(ctx, obj.Key)
		if err != nil {
			return results, err
		}
		if exists {
			u.logger.Info("object already published", "bucket", u.bucket, "key", obj.Key)
			results = append(results, Result{Key: obj.Key, Skipped: true})
			continue
		}

		_, err = u.store.PutObject(ctx, &s3.PutObjectInput{
			Bucket:      aws.String(u.bucket),
			Key:         aws.String(obj.Key),
			Body:        bytes.NewReader(obj.Body),
			ContentType: aws.String(obj.ContentType),
		})
		if err != nil {
			return results, fmt.Errorf("failed to upload %s to S3: %w", obj.Key, err)
		}

		u.logger.Info("object published", "bucket", u.bucket, "key", obj.Key, "bytes", len(obj.Body))
		results = append(results, Result{Key: obj.Key})
	}

	return results, nil
}

func (u *Uploader) exists(ctx context.Context, key string) (bool, error) {
	_, err := u.store.HeadObject(ctx, &s3.HeadObjectInput{
		Bucket: aws.String(u.bucket),
		Key:    aws.String(key),
	})
	if err == nil {
		return true, nil
	}
	if isNotFound(err) {
		return false, nil
	}
	return false, fmt.Errorf("failed to check %s in S3: %w", key, err)
}

func isNotFound(err error) bool {
	var nf *types.NotFound
	if errors.As(err, &nf) {
		return true
	}
	var nsk *types.NoSuchKey
	if errors.As(err, &nsk) {
		return true
	}
	var re *awshttp.ResponseError
	return errors.As(err, &re) && re.HTTPStatusCode() == http.StatusNotFound
}

// Objects lists the assembly files to publish: the handler archive under
// its asset key and the template under its content hash.
func Objects(a *synth.Assembly) []Object {
	return []Object{
		{
			Key:         a.Manifest.Asset.Key,
			ContentType: "application/zip",
			Body:        a.Asset.Archive,
		},
		{
			Key:         TemplateKey(a),
			ContentType: contentType(a.Manifest.Format),
			Body:        a.TemplateBytes,
		},
	}
}

// TemplateKey is the object key of the rendered template.
func TemplateKey(a *synth.Assembly) string {
	sum := sha256.Sum256(a.TemplateBytes)
	return a.Config.Assets.Prefix + hex.EncodeToString(sum[:]) + "." + a.Manifest.Format
}

// ResolveBucket substitutes the account and region placeholders of the
// default staging bucket name.
func ResolveBucket(bucket, account, region string) (string, error) {
	if strings.Contains(bucket, "${AWS::AccountId}") && account == "" {
		return "", fmt.Errorf("bucket name %q needs an account id", bucket)
	}
	if strings.Contains(bucket, "${AWS::Region}") && region == "" {
		return "", fmt.Errorf("bucket name %q needs a region", bucket)
	}

	resolved := strings.NewReplacer(
		"${AWS::AccountId}", account,
		"${AWS::Region}", region,
	).Replace(bucket)

	if resolved == "" || strings.Contains(resolved, "${") {
		return "", fmt.Errorf("cannot resolve bucket name %q", bucket)
	}
	return resolved, nil
}

func contentType(format string) string {
	if format == template.FormatYAML {
		return "application/yaml"
	}
	return "application/json"
}
