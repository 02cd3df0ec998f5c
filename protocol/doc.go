package protocol

// This package implements parsing and serialising for SVDRP, the line based
// remote control protocol spoken by VDR style recorders.
//
// === General Syntax
//
// - the client sends one command at a time and waits for its reply
// - lines from the client are `\r\n` delimited, the caller supplies the terminator
// - lines from the server are terminated by `\n` or a NUL byte
// - `\r` and any other control byte (except TAB) received from the server is dropped
//
// === Replies
//
// Every reply line starts with a three digit status code (100-999) followed by a
// separator and free form text.
//
//   ```
//     <code>-<text>\r\n   continuation line
//     <code> <text>\r\n   final line of the reply
//   ```
//
// A reply consists of zero or more continuation lines followed by exactly one
// final line. All lines of a reply share the same status code.
//
// === Greeting
//
// Right after the connection is established the server sends a single reply
// with code 220. The text may be made of `;` separated fields, if there are
// at least two `;` the last field names the character set of the server.
//
//   ```
//     < 220 vdr SVDRP VideoDiskRecorder 2.6.1; Sat Oct 17 12:00:00 2026; UTF-8\r\n
//   ```
//
// === QUIT
//
//  ```
//    > QUIT\r\n
//    < 221 vdr closing connection\r\n
//  ```
//
// An EOT byte (0x04) at the start of a line marks the end of the stream.
