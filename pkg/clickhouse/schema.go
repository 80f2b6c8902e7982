package clickhouse

import "fmt"

// Schema returns the DDL for the screener tables in database db.
//
// bars and indicator_values are written by the upstream indicator service;
// signal_events is written by the screener.
func Schema(db string) []string {
	return []string{
		fmt.Sprintf("CREATE DATABASE IF NOT EXISTS %s", db),
		fmt.Sprintf(`CREATE TABLE IF NOT EXISTS %s.bars (
    symbol LowCardinality(String),
    tf     LowCardinality(String),
    ts     DateTime64(3, 'UTC'),
    open   Float64,
    high   Float64,
    low    Float64,
    close  Float64,
    closed UInt8
) ENGINE = ReplacingMergeTree
ORDER BY (symbol, tf, ts)`, db),
		fmt.Sprintf(`CREATE TABLE IF NOT EXISTS %s.indicator_values (
    symbol LowCardinality(String),
    tf     LowCardinality(String),
    ts     DateTime64(3, 'UTC'),
    name   LowCardinality(String),
    value  Float64
) ENGINE = ReplacingMergeTree
ORDER BY (symbol, tf, name, ts)`, db),
		fmt.Sprintf(`CREATE TABLE IF NOT EXISTS %s.signal_events (
    at        DateTime64(3, 'UTC'),
    symbol    LowCardinality(String),
    tf        LowCardinality(String),
    name      LowCardinality(String),
    value     Int8,
    previous  Int8,
    change    LowCardinality(String),
    reference Int8,
    local     Int8
) ENGINE = MergeTree
PARTITION BY toYYYYMM(at)
ORDER BY (symbol, name, tf, at)`, db),
	}
}
