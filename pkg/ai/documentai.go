package ai

import (
	"context"
	"fmt"
	"strings"

	documentai "cloud.google.com/go/documentai/apiv1"
	"cloud.google.com/go/documentai/apiv1/documentaipb"
	"google.golang.org/api/option"

	"github.com/noah-isme/qa-reports-api/pkg/config"
)

// DocumentExtractor pulls plain text out of PDFs and images through a Document AI processor.
type DocumentExtractor struct {
	client    *documentai.DocumentProcessorClient
	processor string
}

// NewDocumentExtractor dials the regional Document AI endpoint for the configured processor.
func NewDocumentExtractor(ctx context.Context, cfg config.DocumentAIConfig, credentialsFile string) (*DocumentExtractor, error) {
	name := processorName(cfg.ProjectID, cfg.Location, cfg.ProcessorID)
	if name == "" {
		return nil, fmt.Errorf("document ai processor not configured")
	}
	location := strings.TrimSpace(cfg.Location)
	opts := []option.ClientOption{option.WithEndpoint(fmt.Sprintf("%s-documentai.googleapis.com:443", location))}
	if credentialsFile != "" {
		opts = append(opts, option.WithCredentialsFile(credentialsFile))
	}
	client, err := documentai.NewDocumentProcessorClient(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("documentai client: %w", err)
	}
	return &DocumentExtractor{client: client, processor: name}, nil
}

// ExtractText runs the processor over raw bytes and returns the recognised text.
func (d *DocumentExtractor) ExtractText(ctx context.Context, content []byte, mimeType string) (string, error) {
	if len(content) == 0 {
		return "", nil
	}
	if mimeType == "" {
		mimeType = "application/pdf"
	}
	resp, err := d.client.ProcessDocument(ctx, &documentaipb.ProcessRequest{
		Name: d.processor,
		Source: &documentaipb.ProcessRequest_RawDocument{
			RawDocument: &documentaipb.RawDocument{Content: content, MimeType: mimeType},
		},
	})
	if err != nil {
		return "", fmt.Errorf("documentai ProcessDocument: %w", err)
	}
	if resp == nil || resp.Document == nil {
		return "", nil
	}
	return resp.Document.Text, nil
}

// Close releases the gRPC connection.
func (d *DocumentExtractor) Close() error {
	if d == nil || d.client == nil {
		return nil
	}
	return d.client.Close()
}

func processorName(project, location, processorID string) string {
	project = strings.TrimSpace(project)
	location = strings.TrimSpace(location)
	processorID = strings.TrimSpace(processorID)
	if project == "" || location == "" || processorID == "" {
		return ""
	}
	return fmt.Sprintf("projects/%s/locations/%s/processors/%s", project, location, processorID)
}
