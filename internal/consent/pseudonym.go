package consent

import (
	"encoding/binary"
	"fmt"
	"hash/fnv"
)

var pseudonymAdjectives = []string{
	"Amber", "Brisk", "Calm", "Dapper", "Eager", "Fabled", "Gentle", "Hidden",
	"Ivory", "Jolly", "Keen", "Lunar", "Mellow", "Nimble", "Opal", "Placid",
	"Quiet", "Rustic", "Silent", "Tidal", "Umber", "Vivid", "Wistful", "Zesty",
}

var pseudonymAnimals = []string{
	"Badger", "Crane", "Dolphin", "Egret", "Falcon", "Gecko", "Heron", "Ibis",
	"Jackal", "Kestrel", "Lemur", "Marmot", "Newt", "Otter", "Pangolin",
	"Quail", "Raven", "Stoat", "Tapir", "Urchin", "Vole", "Wombat",
}

// Pseudonym returns a stable pseudonymous display name for an author id.
// The same id always maps to the same name; the real id is not recoverable
// from the output.
func Pseudonym(authorID int64) string {
	var buf [8]byte
	binary.BigEndian.PutUint64(buf[:], uint64(authorID))
	h := fnv.New64a()
	h.Write(buf[:])
	sum := h.Sum64()

	adj := pseudonymAdjectives[sum%uint64(len(pseudonymAdjectives))]
	animal := pseudonymAnimals[(sum>>16)%uint64(len(pseudonymAnimals))]
	return fmt.Sprintf("%s %s %04d", adj, animal, (sum>>32)%10000)
}
