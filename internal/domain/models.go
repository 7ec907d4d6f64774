package domain

// UploadRequest is the JSON body accepted by the processing endpoints.
type UploadRequest struct {
	File     string `json:"file" binding:"required"`
	Filename string `json:"filename" binding:"required"`
}

// PageImage is one rasterized page of a document, identified by the object
// key its PNG was stored under.
type PageImage struct {
	PageIndex  int
	StorageKey string
}

type BlockType string

const (
	BlockTypePage        BlockType = "PAGE"
	BlockTypeLine        BlockType = "LINE"
	BlockTypeWord        BlockType = "WORD"
	BlockTypeKeyValueSet BlockType = "KEY_VALUE_SET"
)

type EntityType string

const (
	EntityTypeKey   EntityType = "KEY"
	EntityTypeValue EntityType = "VALUE"
)

type RelationshipType string

const (
	RelationshipChild RelationshipType = "CHILD"
	RelationshipValue RelationshipType = "VALUE"
)

type Relationship struct {
	Type RelationshipType
	IDs  []string
}

// Block is a provider-neutral element of an OCR block graph.
type Block struct {
	ID            string
	Type          BlockType
	Text          string
	EntityTypes   []EntityType
	Relationships []Relationship
}

func (b Block) HasEntityType(t EntityType) bool {
	for _, et := range b.EntityTypes {
		if et == t {
			return true
		}
	}
	return false
}

// ExtractionResult is built fresh for every request.
type ExtractionResult struct {
	Fields  map[string]string
	RawText string
	Pages   int
}
