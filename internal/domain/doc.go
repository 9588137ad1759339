// Package domain models hazard alerts and the satellite scenes used to build
// GeoZarr products for them.
//
// # Alert Sources
//
// Alerts arrive from heterogeneous feeds (Copernicus EMS, GDACS, national
// warning services) and from the alert topic. No two sources agree on field
// names, so [ParseAlertPayload] resolves every canonical field from an ordered
// list of synonyms:
//
//	id:        id | alertId | identifier | parameters.id | parameters.alertId   -> "alert"
//	hazard:    hazardType | hazard_type | parameters.hazard | parameters.hazardType -> "unknown"
//	severity:  severity | parameters.severity | severityLevel                  -> "unknown"
//	issued:    issued | time | sent | updated                                  -> ""
//	geometry:  areaOfInterest | geometry | parameters.geometry                 -> {}
//
// The first present, non-empty value wins. Missing or malformed fields fall
// back to defaults; only a payload that is not a JSON object is rejected.
//
// GeoJSON Features ({"type":"Feature","properties":{...},"geometry":{...}})
// are flattened first: properties become the working record and geometry is
// injected as areaOfInterest unless the properties already carry one.
//
// # Timestamps
//
// Issue and capture times are ISO-8601. Sources regularly omit the zone
// ("2025-01-01T00:00:00") or send a bare date; both are read as UTC by
// [ParseTimestamp].
//
// # Scene Ranking
//
// Scenes are ranked newest first, then clearest (lowest eo:cloud_cover).
// Missing cloud cover counts as 100. A scene whose capture time does not parse
// is ranked as "now" with cloud cover 100, and always after every scene with a
// valid capture time. See [RankScenes].
//
// # Storage Keys
//
// Alert ids and hazard names end up in object keys. [Slugify] replaces every
// run of characters outside [A-Za-z0-9._-] with "-" so keys stay valid no
// matter what a feed sends.
package domain
