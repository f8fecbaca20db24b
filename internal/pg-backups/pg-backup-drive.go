/*
Copyright 2025 Vendahub Authors.

Licensed under the Apache License, Version 2.0 (the "License");
you may not use this file except in compliance with the License.
You may obtain a copy of the License at

	http://www.apache.org/licenses/LICENSE-2.0

Unless required by applicable law or agreed to in writing, software
distributed under the License is distributed on an "AS IS" BASIS,
WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
See the License for the specific language governing permissions and
limitations under the License.
*/

package backups

import (
	"archive/zip"
	"bytes"
	"context"
	"database/sql"
	"fmt"
	"io"
	"net"
	"net/url"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/sirupsen/logrus"

	"github.com/vendahub/tesouro/config"
)

// BackupManager dumps the ledger database to disk and optionally ships
// the dump to S3. S3Client may be injected for tests; when nil a client
// is built from the configured credentials on first use.
type BackupManager struct {
	Config   *config.Configuration
	S3Client *s3.Client
}

func NewBackupManager() (*BackupManager, error) {
	conf, err := config.Fetch()
	if err != nil {
		return nil, err
	}
	return &BackupManager{Config: conf}, nil
}

// BackupToDisk runs pg_dump against the configured data source and
// writes the dump under BackupDir/<date>. It returns the path of the
// dump file it created.
func (bm *BackupManager) BackupToDisk(ctx context.Context) (string, error) {
	conf := bm.Config

	db, err := sql.Open("postgres", conf.DataSource.Dns)
	if err != nil {
		return "", fmt.Errorf("failed to open database connection: %w", err)
	}
	defer db.Close()

	if err := db.PingContext(ctx); err != nil {
		return "", fmt.Errorf("failed to ping database: %w", err)
	}

	var dbSize string
	err = db.QueryRowContext(ctx, "SELECT pg_size_pretty(pg_database_size(current_database()))").Scan(&dbSize)
	if err != nil {
		return "", fmt.Errorf("failed to read database size: %w", err)
	}
	logrus.Infof("backing up database, size: %s", dbSize)

	today := time.Now().Format("2006-01-02")
	currentTime := time.Now().Format("150405")
	backupDir := filepath.Join(conf.BackupDir, today)

	if err := os.MkdirAll(backupDir, os.ModePerm); err != nil {
		return "", fmt.Errorf("failed to create backup directory: %w", err)
	}

	parsedURL, err := url.Parse(conf.DataSource.Dns)
	if err != nil {
		return "", fmt.Errorf("failed to parse data source dns: %w", err)
	}

	dbUser := parsedURL.User.Username()
	dbPassword, _ := parsedURL.User.Password()
	dbHost, dbPort, err := net.SplitHostPort(parsedURL.Host)
	if err != nil {
		return "", fmt.Errorf("failed to split database host: %w", err)
	}
	dbName := strings.TrimPrefix(parsedURL.Path, "/")
	if dbName == "" {
		dbName = "tesouro"
	}

	backupFilePath := filepath.Join(backupDir, fmt.Sprintf("tesouro-%s-backup.sql", currentTime))
	cmd := exec.CommandContext(ctx, "pg_dump", "-U", dbUser, "-d", dbName, "-f", backupFilePath)
	cmd.Env = append(os.Environ(), "PGHOST="+dbHost, "PGPORT="+dbPort, "PGUSER="+dbUser, "PGPASSWORD="+dbPassword)

	var stderr bytes.Buffer
	cmd.Stderr = &stderr
	if err := cmd.Run(); err != nil {
		return "", fmt.Errorf("pg_dump failed: %w: %s", err, stderr.String())
	}

	logrus.Infof("backup successful: %s", backupFilePath)
	return backupFilePath, nil
}

// BackupToS3 dumps the database to disk, zips the day's backup
// directory and uploads the archive to the configured bucket. The zip
// is removed locally after a successful upload.
func (bm *BackupManager) BackupToS3(ctx context.Context) error {
	filePath, err := bm.BackupToDisk(ctx)
	if err != nil {
		return fmt.Errorf("failed to backup to disk: %w", err)
	}

	today := time.Now().Format("2006-01-02")
	dirToZip := filepath.Dir(filePath)
	zipFile := today + ".zip"

	if err := zipDir(dirToZip, zipFile); err != nil {
		return fmt.Errorf("failed to zip backup: %w", err)
	}

	client, err := bm.s3Client(ctx)
	if err != nil {
		return err
	}

	if err := uploadToS3(ctx, client, zipFile, bm.Config.S3BucketName, zipFile); err != nil {
		return fmt.Errorf("failed to upload backup: %w", err)
	}

	if err := os.Remove(zipFile); err != nil {
		return err
	}

	logrus.Infof("backup for %s zipped and uploaded to S3", today)
	return nil
}

func (bm *BackupManager) s3Client(ctx context.Context) (*s3.Client, error) {
	if bm.S3Client != nil {
		return bm.S3Client, nil
	}

	cfg, err := awsconfig.LoadDefaultConfig(ctx,
		awsconfig.WithRegion(bm.Config.S3Region),
		awsconfig.WithCredentialsProvider(credentials.NewStaticCredentialsProvider(bm.Config.AwsAccessKeyId, bm.Config.AwsSecretAccessKey, "")),
	)
	if err != nil {
		return nil, err
	}
	return s3.NewFromConfig(cfg), nil
}

// zipDir archives every file under srcDir into destZip with paths
// relative to srcDir.
func zipDir(srcDir, destZip string) error {
	zipFile, err := os.Create(destZip)
	if err != nil {
		return err
	}
	defer zipFile.Close()

	writer := zip.NewWriter(zipFile)
	defer writer.Close()

	return filepath.WalkDir(srcDir, func(path string, entry os.DirEntry, err error) error {
		if err != nil || entry.IsDir() {
			return err
		}

		relPath, err := filepath.Rel(srcDir, path)
		if err != nil {
			return err
		}
		dst, err := writer.Create(relPath)
		if err != nil {
			return err
		}

		src, err := os.Open(path)
		if err != nil {
			return err
		}
		defer src.Close()

		_, err = io.Copy(dst, src)
		return err
	})
}

func uploadToS3(ctx context.Context, client *s3.Client, filePath, bucketName, itemKey string) error {
	file, err := os.Open(filePath)
	if err != nil {
		return err
	}
	defer file.Close()

	_, err = client.PutObject(ctx, &s3.PutObjectInput{
		Bucket: aws.String(bucketName),
		Key:    aws.String(itemKey),
		Body:   file,
	})

	return err
}
