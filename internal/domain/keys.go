package domain

// KeyPrefix namespaces every key ragpack writes to the database.
const KeyPrefix = "ragpack:"

// ChunkKeyPrefix is the prefix of chunk hashes covered by the chunk index.
const ChunkKeyPrefix = KeyPrefix + "chunk:"

// ChunkIndexName is the FT index over chunk hashes.
const ChunkIndexName = KeyPrefix + "chunks:idx"
