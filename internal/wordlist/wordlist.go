package wordlist

import (
	"crypto/rand"
	"fmt"
	"math/big"
	"strings"

	"conduit/internal/domain"
)

var even = []string{
	"aardvark", "absurd", "accrue", "acme", "adrift", "adult", "afflict",
	"ahead", "aimless", "algol", "allow", "alone", "ammo", "ancient",
	"apple", "artist", "assume", "athens", "atlas", "aztec", "baboon",
	"backfield", "backward", "banjo", "beaming", "bedlamp", "beehive",
	"beeswax", "befriend", "belfast", "berserk", "billiard",
}

var odd = []string{
	"adroitness", "adviser", "aftermath", "aggregate", "alkali",
	"almighty", "amulet", "amusement", "antenna", "applicant", "apollo",
	"armistice", "article", "asteroid", "atlantic", "atmosphere",
	"autopsy", "babylon", "backwater", "barbecue", "belowground",
	"bifocals", "bodyguard", "bookseller", "borderline", "bottomless",
	"bradbury", "bluebird", "cannonball", "candidate", "cellulose",
	"certify",
}

// Choose returns n random words joined by dashes, alternating between the
// odd and even tables starting with odd.
func Choose(n int) (string, error) {
	words := make([]string, 0, n)
	for i := 0; i < n; i++ {
		table := even
		if i%2 == 0 {
			table = odd
		}
		idx, err := rand.Int(rand.Reader, big.NewInt(int64(len(table))))
		if err != nil {
			return "", err
		}
		words = append(words, table[idx.Int64()])
	}
	return strings.Join(words, "-"), nil
}

// Join forms a full code from a nameplate and a word suffix.
func Join(nameplate, words string) domain.Code {
	return domain.Code(nameplate + "-" + words)
}

// Split separates a code into its nameplate and word suffix.
func Split(code domain.Code) (nameplate, words string, err error) {
	s := string(code)
	i := strings.IndexByte(s, '-')
	if i <= 0 || i == len(s)-1 {
		return "", "", fmt.Errorf("malformed code %q: want <nameplate>-<words>", s)
	}
	return s[:i], s[i+1:], nil
}
