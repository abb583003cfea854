package mongo

import (
	"time"

	"go.mongodb.org/mongo-driver/v2/bson"

	"github.com/xraph/mapsection/cache"
)

// colSections is the collection holding stored sections.
const colSections = "mapsection_sections"

type sectionModel struct {
	ID               string    `bson:"_id"`
	SubdivisionID    string    `bson:"subdivision_id"`
	BlockX           int64     `bson:"block_x"`
	BlockY           int64     `bson:"block_y"`
	TargetIterations int       `bson:"target_iterations"`
	Payload          []byte    `bson:"payload"`
	CreatedAt        time.Time `bson:"created_at"`
}

func (m *sectionModel) key() cache.Key {
	return cache.Key{
		SubdivisionID:    m.SubdivisionID,
		BlockX:           m.BlockX,
		BlockY:           m.BlockY,
		TargetIterations: m.TargetIterations,
	}
}

func keyFilter(k cache.Key) bson.D {
	return bson.D{
		{Key: "subdivision_id", Value: k.SubdivisionID},
		{Key: "block_x", Value: k.BlockX},
		{Key: "block_y", Value: k.BlockY},
		{Key: "target_iterations", Value: k.TargetIterations},
	}
}

// batchFilter matches any of keys.
func batchFilter(keys []cache.Key) bson.M {
	or := make(bson.A, 0, len(keys))
	for _, k := range keys {
		or = append(or, keyFilter(k))
	}
	return bson.M{"$or": or}
}
