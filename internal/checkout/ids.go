package checkout

import (
	"crypto/rand"
	"fmt"
	"math/big"
	"time"

	"github.com/google/uuid"
)

const (
	orderIDPrefix    = "ORD"
	shippingIDPrefix = "SHP"
	suffixLength     = 5
	base36           = "0123456789ABCDEFGHIJKLMNOPQRSTUVWXYZ"
)

// IDGenerator issues the identifiers written at commit.
type IDGenerator interface {
	OrderID(at time.Time) (string, error)
	ShippingID(at time.Time) (string, error)
	LineID() string
}

// RandomIDs formats ids as PREFIX-YYYYMMDD-XXXXX with five random base-36
// characters, and version 4 UUIDs for order lines.
type RandomIDs struct{}

func (RandomIDs) OrderID(at time.Time) (string, error) {
	return datedID(orderIDPrefix, at)
}

func (RandomIDs) ShippingID(at time.Time) (string, error) {
	return datedID(shippingIDPrefix, at)
}

func (RandomIDs) LineID() string {
	return uuid.NewString()
}

func datedID(prefix string, at time.Time) (string, error) {
	suffix, err := randomSuffix(suffixLength)
	if err != nil {
		return "", fmt.Errorf("generate %s id: %w", prefix, err)
	}
	return fmt.Sprintf("%s-%s-%s", prefix, at.Format("20060102"), suffix), nil
}

func randomSuffix(n int) (string, error) {
	radix := big.NewInt(int64(len(base36)))
	buf := make([]byte, n)
	for i := range buf {
		v, err := rand.Int(rand.Reader, radix)
		if err != nil {
			return "", err
		}
		buf[i] = base36[v.Int64()]
	}
	return string(buf), nil
}
