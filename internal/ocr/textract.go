package ocr

import (
	"context"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/textract"
	"github.com/aws/aws-sdk-go-v2/service/textract/types"
	"go.uber.org/zap"

	"github.com/finners68/process-insurance/internal/domain"
)

// TextractAPI is the subset of the Textract client used here.
type TextractAPI interface {
	DetectDocumentText(ctx context.Context, params *textract.DetectDocumentTextInput, optFns ...func(*textract.Options)) (*textract.DetectDocumentTextOutput, error)
	AnalyzeDocument(ctx context.Context, params *textract.AnalyzeDocumentInput, optFns ...func(*textract.Options)) (*textract.AnalyzeDocumentOutput, error)
}

type TextractProvider struct {
	client  TextractAPI
	bucket  string
	timeout time.Duration
	log     *zap.Logger
}

func NewTextractProvider(client TextractAPI, bucket string, timeout time.Duration, log *zap.Logger) *TextractProvider {
	return &TextractProvider{
		client:  client,
		bucket:  bucket,
		timeout: timeout,
		log:     log,
	}
}

func (p *TextractProvider) Name() string { return "textract" }

func (p *TextractProvider) document(key string) *types.Document {
	return &types.Document{
		S3Object: &types.S3Object{
			Bucket: aws.String(p.bucket),
			Name:   aws.String(key),
		},
	}
}

func (p *TextractProvider) withTimeout(ctx context.Context) (context.Context, context.CancelFunc) {
	if p.timeout <= 0 {
		return context.WithCancel(ctx)
	}
	return context.WithTimeout(ctx, p.timeout)
}

func (p *TextractProvider) DetectLines(ctx context.Context, key string) ([]domain.Block, error) {
	ctx, cancel := p.withTimeout(ctx)
	defer cancel()

	out, err := p.client.DetectDocumentText(ctx, &textract.DetectDocumentTextInput{
		Document: p.document(key),
	})
	if err != nil {
		return nil, err
	}

	p.log.Debug("Textract detect_document_text complete",
		zap.String("key", key),
		zap.Int("blocks", len(out.Blocks)))

	return convertBlocks(out.Blocks), nil
}

func (p *TextractProvider) AnalyzeForms(ctx context.Context, key string) ([]domain.Block, error) {
	ctx, cancel := p.withTimeout(ctx)
	defer cancel()

	out, err := p.client.AnalyzeDocument(ctx, &textract.AnalyzeDocumentInput{
		Document:     p.document(key),
		FeatureTypes: []types.FeatureType{types.FeatureTypeForms, types.FeatureTypeTables},
	})
	if err != nil {
		return nil, err
	}

	p.log.Debug("Textract analyze_document complete",
		zap.String("key", key),
		zap.Int("blocks", len(out.Blocks)))

	return convertBlocks(out.Blocks), nil
}

func convertBlocks(in []types.Block) []domain.Block {
	blocks := make([]domain.Block, 0, len(in))
	for _, b := range in {
		block := domain.Block{
			ID:   aws.ToString(b.Id),
			Type: domain.BlockType(b.BlockType),
			Text: aws.ToString(b.Text),
		}
		for _, et := range b.EntityTypes {
			block.EntityTypes = append(block.EntityTypes, domain.EntityType(et))
		}
		for _, rel := range b.Relationships {
			block.Relationships = append(block.Relationships, domain.Relationship{
				Type: domain.RelationshipType(rel.Type),
				IDs:  rel.Ids,
			})
		}
		blocks = append(blocks, block)
	}
	return blocks
}
