// Package server implements the UDP listener that receives GDL90 datagrams,
// the pipeline that decodes them into records for the publish queue, and the
// HTTP API for health, statistics and the live traffic table.
package server
