package cmd

import (
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/BDNK1/schedstack/internal/publish"
	"github.com/BDNK1/schedstack/internal/synth"
)

var (
	publishBucket   string
	publishAccount  string
	publishEndpoint string
)

var publishCmd = &cobra.Command{
	Use:   "publish [project-dir]",
	Short: "Upload the asset archive and template to the staging bucket",
	Long: `Publish synthesizes the project and uploads the handler archive and the
template to the staging bucket. Objects already present are skipped. Stacks
are not created or updated.

Credentials come from the default AWS chain. For S3-compatible endpoints,
SCHEDSTACK_S3_ACCESS_KEY and SCHEDSTACK_S3_SECRET_KEY may be set instead.

Example:
  schedstack publish .
  schedstack publish . --bucket my-assets --endpoint http://localhost:9000
`,
	Args: cobra.MaximumNArgs(1),
	RunE: runPublish,
}

func init() {
	publishCmd.Flags().StringVar(&publishBucket, "bucket", "", "Staging bucket (default: assets.bucket or the bootstrap bucket)")
	publishCmd.Flags().StringVar(&publishAccount, "account", "", "Account id for the bootstrap bucket name (default: caller identity)")
	publishCmd.Flags().StringVar(&publishEndpoint, "endpoint", "", "S3-compatible endpoint URL")
}

func runPublish(cmd *cobra.Command, args []string) error {
	opts, err := synthOptions(args)
	if err != nil {
		return err
	}

	// The template must reference the bucket the archive is uploaded to
	if publishBucket != "" {
		if opts.Overrides == nil {
			opts.Overrides = map[string]string{}
		}
		opts.Overrides["assets.bucket"] = publishBucket
	}

	a, err := synth.Build(opts)
	if err != nil {
		return err
	}

	ctx := cmd.Context()
	clients, err := publish.NewClients(ctx, publish.ClientConfig{
		Region:    a.Config.Region,
		Endpoint:  publishEndpoint,
		AccessKey: os.Getenv("SCHEDSTACK_S3_ACCESS_KEY"),
		SecretKey: os.Getenv("SCHEDSTACK_S3_SECRET_KEY"),
	})
	if err != nil {
		return err
	}

	bucket := a.Manifest.Asset.Bucket

	account := publishAccount
	if account == "" && strings.Contains(bucket, "${AWS::AccountId}") {
		if account, err = clients.AccountID(ctx); err != nil {
			return err
		}
	}

	bucket, err = publish.ResolveBucket(bucket, account, clients.Region)
	if err != nil {
		return err
	}

	uploader := publish.NewUploader(clients.S3, bucket, logger)
	results, err := uploader.Upload(ctx, publish.Objects(a))
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "Published %s to s3://%s\n", a.Config.Name, bucket)
	for _, r := range results {
		status := "uploaded"
		if r.Skipped {
			status = "exists"
		}
		fmt.Fprintf(out, "  %-8s %s\n", status, r.Key)
	}
	return nil
}
