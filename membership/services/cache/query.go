/*
Copyright IBM Corp. All Rights Reserved.

SPDX-License-Identifier: Apache-2.0
*/

package cache

import (
	"fmt"

	"github.com/hyperledger-labs/fabric-bnms/membership"
	"github.com/thedevsaddam/gojsonq"
)

// OfMetadataType keeps the records whose metadata has the passed type.
func OfMetadataType(records []*membership.Record, metadataType string) []*membership.Record {
	var res []*membership.Record
	for _, r := range records {
		if r.State.Metadata.Type == metadataType {
			res = append(res, r)
		}
	}
	return res
}

// FilterByMetadataField keeps the records whose metadata has value at path.
// Paths use the dot notation of gojsonq, for instance "role" or "roles.[0].name".
func FilterByMetadataField(records []*membership.Record, path string, value interface{}) []*membership.Record {
	expected := fmt.Sprint(value)
	var res []*membership.Record
	for _, r := range records {
		if len(r.State.Metadata.Value) == 0 {
			continue
		}
		jq := gojsonq.New().FromString(string(r.State.Metadata.Value))
		if err := jq.Error(); err != nil {
			logger.Debugf("cannot query metadata of [%s]: %s", r, err)
			continue
		}
		found := jq.Find(path)
		if found != nil && fmt.Sprint(found) == expected {
			res = append(res, r)
		}
	}
	return res
}
