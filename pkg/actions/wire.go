package actions

import (
	"encoding/xml"
	"strconv"
	"strings"
	"time"
)

// MembershipDefinitionName is the definition type used for group membership.
const MembershipDefinitionName = "Up Devices"

const orionNamespace = "http://schemas.solarwinds.com/2008/Orion"

// NodeDescriptor returns the "N:<id>" form the Orion.Nodes verbs take.
func NodeDescriptor(nodeID int64) string {
	return "N:" + strconv.FormatInt(nodeID, 10)
}

// MembershipDefinition returns the exact AddDefinition payload for uri:
//
//	<MemberDefinitionInfo xmlns="http://schemas.solarwinds.com/2008/Orion"><Name>Up Devices</Name><Definition>URI</Definition></MemberDefinitionInfo>
//
// with URI XML-escaped.
func MembershipDefinition(uri string) string {
	var b strings.Builder
	b.WriteString(`<MemberDefinitionInfo xmlns="` + orionNamespace + `">`)
	b.WriteString("<Name>" + MembershipDefinitionName + "</Name>")
	b.WriteString("<Definition>")
	_ = xml.EscapeText(&b, []byte(uri))
	b.WriteString("</Definition>")
	b.WriteString("</MemberDefinitionInfo>")
	return b.String()
}

// CustomPropertiesURI returns the custom-properties sub-resource of uri.
func CustomPropertiesURI(uri string) string {
	return strings.TrimSuffix(uri, "/") + "/CustomProperties"
}

// Timestamp formats t as the UTC wire time.
func Timestamp(t time.Time) string {
	return t.UTC().Format(time.RFC3339)
}
