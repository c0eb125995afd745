package mocks

import (
	"github.com/stretchr/testify/mock"
)

// FileOperations is a mock implementation of the file.FileOperations interface
type FileOperations struct {
	mock.Mock
}

func (m *FileOperations) IsFileExists(filePath string) (bool, error) {
	args := m.Called(filePath)
	return args.Bool(0), args.Error(1)
}

func (m *FileOperations) ReadFileRaw(filePath string) ([]byte, error) {
	args := m.Called(filePath)
	data, _ := args.Get(0).([]byte)
	return data, args.Error(1)
}

func (m *FileOperations) ReadYamlFile(filePath string, v any) error {
	args := m.Called(filePath, v)
	return args.Error(0)
}

func (m *FileOperations) WriteJsonFile(filePath string, data any) error {
	args := m.Called(filePath, data)
	return args.Error(0)
}

func (m *FileOperations) EnsureDir(dirPath string) error {
	args := m.Called(dirPath)
	return args.Error(0)
}

func (m *FileOperations) RenameFile(oldPath, newPath string) error {
	args := m.Called(oldPath, newPath)
	return args.Error(0)
}
