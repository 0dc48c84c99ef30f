/*
Package installer provides the building blocks for installing game
server artifacts on the host.

Components:
  - Downloader: resty over a retrying transport, per-host circuit breakers, rate limit
  - Extractor: content-sniffed zip, tar, gzip and zstd unpacking
  - MarkExecutable: glob-based chmod over an unpacked tree
  - CommandRunner: external setup tools with a hard timeout
*/
package installer
