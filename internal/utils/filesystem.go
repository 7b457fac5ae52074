package utils

import (
	"os"

	"golang.org/x/sys/unix"
)

type FilesystemHandler interface {
	MkdirAll(path string, perm os.FileMode) error
	ReadFile(name string) ([]byte, error)
	OpenFile(name string, flag int, perm os.FileMode) (*os.File, error)
	Rename(oldpath string, newpath string) error
	IsNotExist(err error) bool
	Flock(fd int, how int) error
}

func NewFilesystemExecutor() *FilesystemExecutor {
	return &FilesystemExecutor{}
}

type FilesystemExecutor struct{}

func (e *FilesystemExecutor) MkdirAll(path string, perm os.FileMode) error {
	return os.MkdirAll(path, perm)
}

func (e *FilesystemExecutor) ReadFile(name string) ([]byte, error) {
	return os.ReadFile(name)
}

func (e *FilesystemExecutor) OpenFile(name string, flag int, perm os.FileMode) (*os.File, error) {
	return os.OpenFile(name, flag, perm)
}

func (e *FilesystemExecutor) Rename(oldpath string, newpath string) error {
	return os.Rename(oldpath, newpath)
}

func (e *FilesystemExecutor) IsNotExist(err error) bool {
	return os.IsNotExist(err)
}

func (e *FilesystemExecutor) Flock(fd int, how int) error {
	return unix.Flock(fd, how)
}
