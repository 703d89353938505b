package settings_test

import (
	"context"
	"fmt"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/slok/kage/internal/app/root"
	"github.com/slok/kage/internal/app/settings"
	"github.com/slok/kage/internal/jail"
	"github.com/slok/kage/internal/model"
	"github.com/slok/kage/internal/storage/memory"
	"github.com/slok/kage/internal/storage/storagemock"
)

type fakeAutoApprover struct{ calls []bool }

func (f *fakeAutoApprover) SetAutoApprove(enabled bool) { f.calls = append(f.calls, enabled) }

type fakeModelSetter struct{ calls []string }

func (f *fakeModelSetter) SetModel(m string) { f.calls = append(f.calls, m) }

func ptr[T any](v T) *T { return &v }

func TestNewService(t *testing.T) {
	j := &jail.Jail{}
	rootSvc, err := root.NewService(root.ServiceConfig{Jail: j})
	require.NoError(t, err)
	repo, err := memory.NewRepository(memory.RepositoryConfig{})
	require.NoError(t, err)

	tests := map[string]struct {
		config settings.ServiceConfig
		expErr bool
	}{
		"Valid configuration should create the service.": {
			config: settings.ServiceConfig{Settings: repo, Root: rootSvc},
		},
		"Missing settings repository should fail.": {
			config: settings.ServiceConfig{Root: rootSvc},
			expErr: true,
		},
		"Missing root service should fail.": {
			config: settings.ServiceConfig{Settings: repo},
			expErr: true,
		},
	}

	for name, test := range tests {
		t.Run(name, func(t *testing.T) {
			svc, err := settings.NewService(test.config)
			if test.expErr {
				assert.Error(t, err)
				assert.Nil(t, svc)
			} else {
				assert.NoError(t, err)
				assert.NotNil(t, svc)
			}
		})
	}
}

func TestServiceGet(t *testing.T) {
	tests := map[string]struct {
		stored      func(jailRoot string) *model.Settings
		expSettings func(jailRoot string) *model.Settings
	}{
		"Stored settings should be returned.": {
			stored: func(jailRoot string) *model.Settings {
				return &model.Settings{RootDir: jailRoot, Provider: "openai", Model: "gpt-4.1", AutoExec: true}
			},
			expSettings: func(jailRoot string) *model.Settings {
				return &model.Settings{RootDir: jailRoot, Provider: "openai", Model: "gpt-4.1", AutoExec: true}
			},
		},
		"The root in use by the jail should be returned over the stored one.": {
			stored: func(jailRoot string) *model.Settings {
				return &model.Settings{RootDir: "/somewhere/else", Provider: "openai", Model: "gpt-4o"}
			},
			expSettings: func(jailRoot string) *model.Settings {
				return &model.Settings{RootDir: jailRoot, Provider: "openai", Model: "gpt-4o"}
			},
		},
		"Missing settings should return the defaults.": {
			expSettings: func(jailRoot string) *model.Settings {
				return &model.Settings{RootDir: jailRoot, Provider: model.DefaultProvider, Model: model.DefaultModel}
			},
		},
	}

	for name, test := range tests {
		t.Run(name, func(t *testing.T) {
			assert := assert.New(t)
			require := require.New(t)

			j, err := jail.New(t.TempDir())
			require.NoError(err)
			repo, err := memory.NewRepository(memory.RepositoryConfig{})
			require.NoError(err)
			if test.stored != nil {
				require.NoError(repo.SaveSettings(context.TODO(), *test.stored(j.Root())))
			}
			rootSvc, err := root.NewService(root.ServiceConfig{Jail: j, Settings: repo})
			require.NoError(err)

			svc, err := settings.NewService(settings.ServiceConfig{Settings: repo, Root: rootSvc})
			require.NoError(err)

			got, err := svc.Get(context.TODO())
			require.NoError(err)
			assert.Equal(test.expSettings(j.Root()), got)
		})
	}
}

func TestServiceUpdate(t *testing.T) {
	tests := map[string]struct {
		patch       func(tmp string) settings.Patch
		expSettings func(tmp, jailRoot string) model.Settings
		expJailRoot func(tmp, jailRoot string) string
		expAuto     []bool
		expModels   []string
		expErr      bool
	}{
		"Patching auto exec and model should persist and apply them.": {
			patch: func(tmp string) settings.Patch {
				return settings.Patch{AutoExec: ptr(true), Model: ptr("gpt-4.1")}
			},
			expSettings: func(tmp, jailRoot string) model.Settings {
				return model.Settings{RootDir: jailRoot, Provider: "openai", Model: "gpt-4.1", AutoExec: true}
			},
			expJailRoot: func(tmp, jailRoot string) string { return jailRoot },
			expAuto:     []bool{true},
			expModels:   []string{"gpt-4.1"},
		},

		"Patching the root should move the jail and persist the resolved root.": {
			patch: func(tmp string) settings.Patch {
				return settings.Patch{RootDir: ptr(tmp + "/x/../new")}
			},
			expSettings: func(tmp, jailRoot string) model.Settings {
				return model.Settings{RootDir: filepath.Join(tmp, "new"), Provider: "openai", Model: "gpt-4o-mini"}
			},
			expJailRoot: func(tmp, jailRoot string) string { return filepath.Join(tmp, "new") },
		},

		"Provider should be normalized.": {
			patch: func(tmp string) settings.Patch {
				return settings.Patch{Provider: ptr(" OpenAI ")}
			},
			expSettings: func(tmp, jailRoot string) model.Settings {
				return model.Settings{RootDir: jailRoot, Provider: "openai", Model: "gpt-4o-mini"}
			},
			expJailRoot: func(tmp, jailRoot string) string { return jailRoot },
		},

		"An empty model should set the default model.": {
			patch: func(tmp string) settings.Patch {
				return settings.Patch{Model: ptr("")}
			},
			expSettings: func(tmp, jailRoot string) model.Settings {
				return model.Settings{RootDir: jailRoot, Provider: "openai", Model: model.DefaultModel}
			},
			expJailRoot: func(tmp, jailRoot string) string { return jailRoot },
			expModels:   []string{model.DefaultModel},
		},

		"An unsupported provider should fail without changing anything.": {
			patch: func(tmp string) settings.Patch {
				return settings.Patch{Provider: ptr("chatly"), AutoExec: ptr(true), RootDir: ptr(filepath.Join(tmp, "other"))}
			},
			expSettings: func(tmp, jailRoot string) model.Settings {
				return model.Settings{RootDir: jailRoot, Provider: "openai", Model: "gpt-4o-mini"}
			},
			expJailRoot: func(tmp, jailRoot string) string { return jailRoot },
			expErr:      true,
		},

		"An empty root should fail without changing anything.": {
			patch: func(tmp string) settings.Patch {
				return settings.Patch{RootDir: ptr("  "), Model: ptr("gpt-4o")}
			},
			expSettings: func(tmp, jailRoot string) model.Settings {
				return model.Settings{RootDir: jailRoot, Provider: "openai", Model: "gpt-4o-mini"}
			},
			expJailRoot: func(tmp, jailRoot string) string { return jailRoot },
			expErr:      true,
		},

		"An empty patch should keep the settings.": {
			patch: func(tmp string) settings.Patch { return settings.Patch{} },
			expSettings: func(tmp, jailRoot string) model.Settings {
				return model.Settings{RootDir: jailRoot, Provider: "openai", Model: "gpt-4o-mini"}
			},
			expJailRoot: func(tmp, jailRoot string) string { return jailRoot },
		},
	}

	for name, test := range tests {
		t.Run(name, func(t *testing.T) {
			assert := assert.New(t)
			require := require.New(t)

			tmp := t.TempDir()
			j, err := jail.New(filepath.Join(tmp, "jail"))
			require.NoError(err)
			jailRoot := j.Root()

			repo, err := memory.NewRepository(memory.RepositoryConfig{})
			require.NoError(err)
			require.NoError(repo.SaveSettings(context.TODO(), model.Settings{RootDir: jailRoot, Provider: "openai", Model: "gpt-4o-mini"}))
			rootSvc, err := root.NewService(root.ServiceConfig{Jail: j, Settings: repo})
			require.NoError(err)

			auto := &fakeAutoApprover{}
			models := &fakeModelSetter{}
			svc, err := settings.NewService(settings.ServiceConfig{
				Settings:     repo,
				Root:         rootSvc,
				AutoApprover: auto,
				ModelSetter:  models,
			})
			require.NoError(err)

			got, err := svc.Update(context.TODO(), test.patch(tmp))
			if test.expErr {
				assert.ErrorIs(err, model.ErrNotValid)
			} else if assert.NoError(err) {
				assert.Equal(test.expSettings(tmp, jailRoot), *got)
			}

			stored, err := repo.GetSettings(context.TODO())
			require.NoError(err)
			assert.Equal(test.expSettings(tmp, jailRoot), *stored)
			assert.Equal(test.expJailRoot(tmp, jailRoot), j.Root())
			assert.Equal(test.expAuto, auto.calls)
			assert.Equal(test.expModels, models.calls)
		})
	}
}

func TestServiceUpdatePersistFailure(t *testing.T) {
	assert := assert.New(t)
	require := require.New(t)

	j, err := jail.New(t.TempDir())
	require.NoError(err)
	rootSvc, err := root.NewService(root.ServiceConfig{Jail: j})
	require.NoError(err)

	mRepo := storagemock.NewMockSettingsRepository(t)
	mRepo.On("GetSettings", mock.Anything).Once().Return(&model.Settings{RootDir: j.Root(), Provider: "openai", Model: "gpt-4o-mini"}, nil)
	mRepo.On("SaveSettings", mock.Anything, mock.Anything).Once().Return(fmt.Errorf("something"))

	auto := &fakeAutoApprover{}
	svc, err := settings.NewService(settings.ServiceConfig{Settings: mRepo, Root: rootSvc, AutoApprover: auto})
	require.NoError(err)

	_, err = svc.Update(context.TODO(), settings.Patch{AutoExec: ptr(true)})
	assert.Error(err)
	assert.Empty(auto.calls)
}
