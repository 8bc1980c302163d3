package milvus

import (
	"strconv"

	milvusentity "github.com/milvus-io/milvus-sdk-go/v2/entity"
)

// ChunksSchema 医学文献片段 Collection Schema
func ChunksSchema(collection string, dimension int) *milvusentity.Schema {
	return &milvusentity.Schema{
		CollectionName: collection,
		Description:    "Medical literature chunks for semantic search",
		Fields: []*milvusentity.Field{
			{
				Name:       "id",
				DataType:   milvusentity.FieldTypeVarChar,
				PrimaryKey: true,
				AutoID:     false,
				TypeParams: map[string]string{
					"max_length": "64",
				},
			},
			{
				Name:     "vector",
				DataType: milvusentity.FieldTypeFloatVector,
				TypeParams: map[string]string{
					"dim": strconv.Itoa(dimension),
				},
			},
			{
				Name:     "doc_id",
				DataType: milvusentity.FieldTypeVarChar,
				TypeParams: map[string]string{
					"max_length": "64",
				},
			},
			{
				Name:     "title",
				DataType: milvusentity.FieldTypeVarChar,
				TypeParams: map[string]string{
					"max_length": "512",
				},
			},
			{
				Name:     "content",
				DataType: milvusentity.FieldTypeVarChar,
				TypeParams: map[string]string{
					"max_length": "65535",
				},
			},
		},
	}
}
