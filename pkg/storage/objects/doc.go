// Package objects stores user-uploaded files in S3 or an S3-compatible
// service such as MinIO. S3Store satisfies users.AvatarStore.
package objects
