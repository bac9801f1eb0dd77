// Package shardmap 提供按 xxhash 分片的并发 map。
//
// 每个分片持有独立的读写锁，写入只锁住 key 所在分片，
// 适合"读多写少、key 数量有限"的热路径状态表。
package shardmap
