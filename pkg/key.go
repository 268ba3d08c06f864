package pkg

import (
	"slices"

	"github.com/LerianStudio/lib-commons/commons"
	"github.com/artemislabs/lib-entitlement-go/constant"
)

// HashKeyID derives the stable hashed identifier used wherever a license key
// would otherwise appear in logs. The raw key is never logged.
func HashKeyID(licenseKey string) string {
	sum := commons.HashSHA256(licenseKey)
	if len(sum) > constant.KeyIDLogLength {
		return sum[:constant.KeyIDLogLength]
	}

	return sum
}

// ContainsConnectorID checks if the given connector is in the entitled list
func ContainsConnectorID(connectors []string, connectorID string) bool {
	return slices.Contains(connectors, connectorID)
}
