package crosswalk

// Per-field candidate path tables. Each catalog field declares its own
// dialect-specific fallback chain (MODS, then FGDC, then ArcGIS-flavored
// FGDC, then ISO 19115); the resolver walks them in order.

var titlePaths = []string{
	"mods:mods.mods:titleInfo.mods:title",
	"metadata.idinfo.citation.citeinfo.title",
	"metadata.dataIdInfo.idCitation.resTitle",
	"gmi:MI_Metadata.gmd:parentIdentifier.gco:CharacterString",
}

var descriptionPaths = []string{
	"mods:mods.mods:abstract",
	"metadata.idinfo.descript.abstract",
	"metadata.dataIdInfo.idAbs",
	"gmi:MI_Metadata.gmd:identificationInfo.gmd:MD_DataIdentification.gmd:abstract.gco:CharacterString",
}

var issuedPaths = []string{
	"mods:mods.mods:originInfo.mods:dateIssued",
	"metadata.idinfo.citation.citeinfo.pubdate",
	"metadata.mdDateSt",
}

var createdPaths = []string{
	"mods:mods.mods:originInfo.mods:dateCreated",
	"metadata.idinfo.citation.citeinfo.pubdate",
	"metadata.mdDateSt",
}

var publisherPaths = []string{
	"metadata.idinfo.citation.citeinfo.pubinfo.publish",
	"metadata.dataIdInfo.idCredit",
}

var creatorPaths = []string{
	"metadata.idinfo.citation.citeinfo.origin",
	"metadata.dataIdInfo.idCitation.citResParty.rpOrgName",
}

var subjectContainerPaths = []string{
	"mods:mods.mods:subject.mods:topic",
	"metadata.idinfo.keywords.theme",
	"metadata.dataIdInfo.searchKeys",
}

var spatialPaths = []string{
	"mods:mods.mods:subject.mods:geographic",
	"metadata.idinfo.keywords.place.placekey",
}

// nestedLookup collects every value stored under key anywhere in the tree,
// depth first.
func nestedLookup(node any, key string) []any {
	var found []any
	switch t := node.(type) {
	case map[string]any:
		for k, v := range t {
			if k == key {
				found = append(found, v)
			}
			found = append(found, nestedLookup(v, key)...)
		}
	case []any:
		for _, item := range t {
			found = append(found, nestedLookup(item, key)...)
		}
	}
	return found
}

func cleanBlanks(list []string) []string {
	out := make([]string, 0, len(list))
	for _, item := range list {
		if item != "" {
			out = append(out, item)
		}
	}
	return out
}
