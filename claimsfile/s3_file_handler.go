package claimsfile

import (
	"bytes"
	"io"

	"github.com/aws/aws-sdk-go/aws"
	"github.com/aws/aws-sdk-go/aws/credentials/stscreds"
	"github.com/aws/aws-sdk-go/aws/session"
	"github.com/aws/aws-sdk-go/service/s3"
	"github.com/aws/aws-sdk-go/service/s3/s3manager"
	"github.com/sirupsen/logrus"
)

// S3FileHandler discovers claims files under an s3:// dataset root.
type S3FileHandler struct {
	Logger        logrus.FieldLogger
	Endpoint      string
	AssumeRoleArn string
}

func (handler *S3FileHandler) LoadClaimsFiles(root string) (files []*Metadata, skipped int, err error) {
	bucket, prefix := ParseS3Uri(root)

	sess, err := handler.createSession()
	if err != nil {
		handler.Logger.Errorf("Failed to create S3 session: %s", err)
		return files, skipped, err
	}

	svc := s3.New(sess)

	handler.Logger.Infof("Listing objects in bucket %s, prefix %s", bucket, prefix)

	resp, err := svc.ListObjects(&s3.ListObjectsInput{
		Bucket: aws.String(bucket),
		Prefix: aws.String(prefix),
	})
	if err != nil {
		handler.Logger.Errorf("Failed to list objects in S3 bucket %s, prefix %s: %s", bucket, prefix, err)
		return files, skipped, err
	}

	for _, obj := range resp.Contents {
		name := *obj.Key
		if i := len(prefix); i > 0 && len(name) > i {
			name = name[i:]
			for len(name) > 0 && name[0] == '/' {
				name = name[1:]
			}
		}

		metadata, err := ParseMetadata(name)
		metadata.FilePath = "s3://" + bucket + "/" + *obj.Key
		metadata.DeliveryDate = *obj.LastModified

		if err != nil {
			// Skip files with a bad name. An unknown object under the
			// prefix isn't a blocker
			handler.Logger.Warnf("Unknown file found: %s. Skipping.", metadata)
			skipped = skipped + 1
			continue
		}

		files = append(files, &metadata)
	}

	return files, skipped, nil
}

func (handler *S3FileHandler) OpenFile(metadata *Metadata) (io.ReadCloser, error) {
	handler.Logger.Infof("Opening file %s", metadata.FilePath)
	bucket, key := ParseS3Uri(metadata.FilePath)

	sess, err := handler.createSession()
	if err != nil {
		return nil, err
	}

	downloader := s3manager.NewDownloader(sess)
	buff := &aws.WriteAtBuffer{}
	numBytes, err := downloader.Download(buff, &s3.GetObjectInput{
		Bucket: aws.String(bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		handler.Logger.Errorf("Failed to download bucket %s, key %s", bucket, key)
		return nil, err
	}

	handler.Logger.Infof("file downloaded: size=%d", numBytes)

	return io.NopCloser(bytes.NewReader(buff.Bytes())), nil
}

func (handler *S3FileHandler) createSession() (*session.Session, error) {
	sess := session.Must(session.NewSession())

	config := aws.Config{
		Region: aws.String("us-east-1"),
	}

	if handler.Endpoint != "" {
		config.S3ForcePathStyle = aws.Bool(true)
		config.Endpoint = &handler.Endpoint
	}

	if handler.AssumeRoleArn != "" {
		config.Credentials = stscreds.NewCredentials(
			sess,
			handler.AssumeRoleArn,
		)
	}

	return session.NewSessionWithOptions(session.Options{
		Config: config,
	})
}
