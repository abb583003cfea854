package redis

import "github.com/xraph/mapsection/cache"

// All keys are prefixed with "mapsection:" to avoid collisions.
const keyPrefix = "mapsection:"

// sectionKey returns the key for a stored section:
// mapsection:section:{subdivision}:{x}:{y}:{iterations}
func sectionKey(k cache.Key) string { return keyPrefix + "section:" + k.String() }

// subdivisionIndexKey returns the Set key tracking a subdivision's sections.
func subdivisionIndexKey(subdivisionID string) string {
	return keyPrefix + "subdivision_idx:" + subdivisionID
}
