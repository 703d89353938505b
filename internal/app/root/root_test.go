package root_test

import (
	"context"
	"fmt"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/slok/kage/internal/app/root"
	"github.com/slok/kage/internal/jail"
	"github.com/slok/kage/internal/model"
	"github.com/slok/kage/internal/storage/memory"
	"github.com/slok/kage/internal/storage/storagemock"
)

type fakePending int

func (f fakePending) Len() int { return int(f) }

func TestNewService(t *testing.T) {
	tests := map[string]struct {
		config root.ServiceConfig
		expErr bool
	}{
		"Valid configuration should create the service.": {
			config: root.ServiceConfig{Jail: &jail.Jail{}},
		},
		"Missing jail should fail.": {
			config: root.ServiceConfig{},
			expErr: true,
		},
	}

	for name, test := range tests {
		t.Run(name, func(t *testing.T) {
			require := require.New(t)

			svc, err := root.NewService(test.config)
			if test.expErr {
				require.Error(err)
				require.Nil(svc)
			} else {
				require.NoError(err)
				require.NotNil(svc)
			}
		})
	}
}

func TestServiceSet(t *testing.T) {
	tests := map[string]struct {
		path        func(tmp string) string
		mock        func(m *storagemock.MockSettingsRepository, tmp string)
		pending     int
		expRoot     func(tmp string) string
		expErr      bool
		expJailRoot bool
	}{
		"Setting a root should create it and persist it.": {
			path: func(tmp string) string { return filepath.Join(tmp, "a", "b") },
			mock: func(m *storagemock.MockSettingsRepository, tmp string) {
				m.On("GetSettings", mock.Anything).Once().Return(&model.Settings{RootDir: "/old", Provider: "openai", Model: "m1", AutoExec: true}, nil)
				m.On("SaveSettings", mock.Anything, model.Settings{RootDir: filepath.Join(tmp, "a", "b"), Provider: "openai", Model: "m1", AutoExec: true}).Once().Return(nil)
			},
			expRoot:     func(tmp string) string { return filepath.Join(tmp, "a", "b") },
			expJailRoot: true,
		},

		"Setting a root with pending commands should be allowed.": {
			path: func(tmp string) string { return tmp },
			mock: func(m *storagemock.MockSettingsRepository, tmp string) {
				m.On("GetSettings", mock.Anything).Once().Return(&model.Settings{Provider: "openai"}, nil)
				m.On("SaveSettings", mock.Anything, mock.Anything).Once().Return(nil)
			},
			pending:     3,
			expRoot:     func(tmp string) string { return tmp },
			expJailRoot: true,
		},

		"Missing settings should be created with the defaults.": {
			path: func(tmp string) string { return tmp },
			mock: func(m *storagemock.MockSettingsRepository, tmp string) {
				m.On("GetSettings", mock.Anything).Once().Return(nil, model.ErrNotFound)
				m.On("SaveSettings", mock.Anything, model.Settings{RootDir: tmp, Provider: model.DefaultProvider, Model: model.DefaultModel}).Once().Return(nil)
			},
			expRoot:     func(tmp string) string { return tmp },
			expJailRoot: true,
		},

		"An empty path should fail without persisting.": {
			path:   func(tmp string) string { return "" },
			mock:   func(m *storagemock.MockSettingsRepository, tmp string) {},
			expErr: true,
		},

		"Failing to persist should fail and leave the jail without root.": {
			path: func(tmp string) string { return tmp },
			mock: func(m *storagemock.MockSettingsRepository, tmp string) {
				m.On("GetSettings", mock.Anything).Once().Return(&model.Settings{}, nil)
				m.On("SaveSettings", mock.Anything, mock.Anything).Once().Return(fmt.Errorf("something"))
			},
			expRoot: func(tmp string) string { return "" },
			expErr:  true,
		},

		"Failing to read the settings should fail and leave the jail without root.": {
			path: func(tmp string) string { return tmp },
			mock: func(m *storagemock.MockSettingsRepository, tmp string) {
				m.On("GetSettings", mock.Anything).Once().Return(nil, fmt.Errorf("something"))
			},
			expRoot: func(tmp string) string { return "" },
			expErr:  true,
		},
	}

	for name, test := range tests {
		t.Run(name, func(t *testing.T) {
			assert := assert.New(t)
			require := require.New(t)

			tmp := t.TempDir()
			mSettings := storagemock.NewMockSettingsRepository(t)
			test.mock(mSettings, tmp)
			j := &jail.Jail{}

			svc, err := root.NewService(root.ServiceConfig{
				Jail:     j,
				Settings: mSettings,
				Pending:  fakePending(test.pending),
			})
			require.NoError(err)

			gotRoot, err := svc.Set(context.TODO(), test.path(tmp))
			if test.expErr {
				assert.Error(err)
			} else {
				assert.NoError(err)
			}
			if test.expRoot != nil {
				assert.Equal(test.expRoot(tmp), gotRoot)
			}
			if test.expJailRoot {
				assert.Equal(test.expRoot(tmp), svc.Get(context.TODO()))
				assert.DirExists(svc.Get(context.TODO()))
			} else {
				assert.Empty(svc.Get(context.TODO()))
			}
		})
	}
}

func TestServiceSetPersistFailureKeepsPreviousRoot(t *testing.T) {
	assert := assert.New(t)
	require := require.New(t)

	prev := t.TempDir()
	j, err := jail.New(prev)
	require.NoError(err)

	mSettings := storagemock.NewMockSettingsRepository(t)
	mSettings.On("GetSettings", mock.Anything).Once().Return(&model.Settings{RootDir: prev}, nil)
	mSettings.On("SaveSettings", mock.Anything, mock.Anything).Once().Return(fmt.Errorf("something"))

	svc, err := root.NewService(root.ServiceConfig{Jail: j, Settings: mSettings})
	require.NoError(err)

	_, err = svc.Set(context.TODO(), filepath.Join(t.TempDir(), "new"))
	assert.Error(err)
	assert.Equal(prev, svc.Get(context.TODO()))
	assert.Equal(prev, j.Root())
}

func TestServiceSetWithoutPersistence(t *testing.T) {
	assert := assert.New(t)
	require := require.New(t)

	tmp := t.TempDir()
	svc, err := root.NewService(root.ServiceConfig{Jail: &jail.Jail{}})
	require.NoError(err)

	got, err := svc.Set(context.TODO(), tmp)
	require.NoError(err)
	assert.Equal(tmp, got)

	_, err = svc.Load(context.TODO())
	assert.ErrorIs(err, model.ErrNotValid)
}

func TestServiceLoad(t *testing.T) {
	tests := map[string]struct {
		settings    func(tmp string) *model.Settings
		expSettings func(tmp string) *model.Settings
		expErr      bool
	}{
		"Loading should apply the persisted root.": {
			settings: func(tmp string) *model.Settings {
				return &model.Settings{RootDir: filepath.Join(tmp, "jail"), Provider: "openai", Model: "m"}
			},
			expSettings: func(tmp string) *model.Settings {
				return &model.Settings{RootDir: filepath.Join(tmp, "jail"), Provider: "openai", Model: "m"}
			},
		},

		"A non clean root should be cleaned.": {
			settings: func(tmp string) *model.Settings {
				return &model.Settings{RootDir: tmp + "/x/../jail", Provider: "openai"}
			},
			expSettings: func(tmp string) *model.Settings {
				return &model.Settings{RootDir: filepath.Join(tmp, "jail"), Provider: "openai"}
			},
		},

		"Missing settings should fail.": {
			expErr: true,
		},
	}

	for name, test := range tests {
		t.Run(name, func(t *testing.T) {
			assert := assert.New(t)
			require := require.New(t)

			tmp := t.TempDir()
			repo, err := memory.NewRepository(memory.RepositoryConfig{})
			require.NoError(err)
			if test.settings != nil {
				require.NoError(repo.SaveSettings(context.TODO(), *test.settings(tmp)))
			}
			j := &jail.Jail{}

			svc, err := root.NewService(root.ServiceConfig{Jail: j, Settings: repo})
			require.NoError(err)

			got, err := svc.Load(context.TODO())
			if test.expErr {
				assert.Error(err)
				assert.Empty(j.Root())
				return
			}
			require.NoError(err)
			exp := test.expSettings(tmp)
			assert.Equal(exp, got)
			assert.Equal(exp.RootDir, j.Root())
			assert.DirExists(j.Root())
		})
	}
}
