// Package bus moves decoded GDL90 records from the ingest path to a message
// bus. It holds the bounded publish queue, the single worker that drains it,
// the JSON envelope format, and the MQTT, webhook and JSON-lines publishers.
package bus
