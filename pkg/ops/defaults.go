// Copyright 2023-2026 The GoMLX Authors. SPDX-License-Identifier: Apache-2.0

package ops

import (
	"sync"
)

// Type ids of the standard operations, as emitted by the model tracer.
const (
	Conv1d = "__torch__.torch.nn.modules.conv.Conv1d"
	Conv2d = "__torch__.torch.nn.modules.conv.Conv2d"
	Conv3d = "__torch__.torch.nn.modules.conv.Conv3d"

	MaxPool1d         = "__torch__.torch.nn.modules.pooling.MaxPool1d"
	MaxPool2d         = "__torch__.torch.nn.modules.pooling.MaxPool2d"
	MaxPool3d         = "__torch__.torch.nn.modules.pooling.MaxPool3d"
	AvgPool1d         = "__torch__.torch.nn.modules.pooling.AvgPool1d"
	AvgPool2d         = "__torch__.torch.nn.modules.pooling.AvgPool2d"
	AvgPool3d         = "__torch__.torch.nn.modules.pooling.AvgPool3d"
	AdaptiveAvgPool1d = "__torch__.torch.nn.modules.pooling.AdaptiveAvgPool1d"
	AdaptiveAvgPool2d = "__torch__.torch.nn.modules.pooling.AdaptiveAvgPool2d"
	AdaptiveAvgPool3d = "__torch__.torch.nn.modules.pooling.AdaptiveAvgPool3d"
	AdaptiveMaxPool1d = "__torch__.torch.nn.modules.pooling.AdaptiveMaxPool1d"
	AdaptiveMaxPool2d = "__torch__.torch.nn.modules.pooling.AdaptiveMaxPool2d"
	AdaptiveMaxPool3d = "__torch__.torch.nn.modules.pooling.AdaptiveMaxPool3d"

	ReLU      = "__torch__.torch.nn.modules.activation.ReLU"
	ReLU6     = "__torch__.torch.nn.modules.activation.ReLU6"
	LeakyReLU = "__torch__.torch.nn.modules.activation.LeakyReLU"
	ELU       = "__torch__.torch.nn.modules.activation.ELU"
	GELU      = "__torch__.torch.nn.modules.activation.GELU"
	Sigmoid   = "__torch__.torch.nn.modules.activation.Sigmoid"
	Tanh      = "__torch__.torch.nn.modules.activation.Tanh"
	Hardswish = "__torch__.torch.nn.modules.activation.Hardswish"
	SiLU      = "__torch__.torch.nn.modules.activation.SiLU"
	Softmax   = "__torch__.torch.nn.modules.activation.Softmax"
	Dropout   = "__torch__.torch.nn.modules.dropout.Dropout"
	Dropout2d = "__torch__.torch.nn.modules.dropout.Dropout2d"
	Identity  = "__torch__.torch.nn.modules.linear.Identity"

	BatchNorm1d = "__torch__.torch.nn.modules.batchnorm.BatchNorm1d"
	BatchNorm2d = "__torch__.torch.nn.modules.batchnorm.BatchNorm2d"
	BatchNorm3d = "__torch__.torch.nn.modules.batchnorm.BatchNorm3d"
	LayerNorm   = "__torch__.torch.nn.modules.normalization.LayerNorm"

	Linear  = "__torch__.torch.nn.modules.linear.Linear"
	Flatten = "__torch__.torch.nn.modules.flatten.Flatten"

	AtenRelu    = "aten::relu"
	AtenSigmoid = "aten::sigmoid"
	AtenTanh    = "aten::tanh"
	AtenAdd     = "aten::add"
	AtenSub     = "aten::sub"
	AtenMul     = "aten::mul"
	AtenCat     = "aten::cat"
	AtenFlatten = "aten::flatten"
	AtenChunk   = "aten::chunk"
	AtenSplit   = "aten::split"
)

var (
	defaultRegistry     *Registry
	defaultRegistryOnce sync.Once
)

// Default returns the process-wide registry with the standard operations. It is built on first use, and
// should be treated as read-only: register custom operations on a registry created with NewRegistry and
// RegisterStandard instead.
func Default() *Registry {
	defaultRegistryOnce.Do(func() {
		defaultRegistry = NewRegistry()
		RegisterStandard(defaultRegistry)
	})
	return defaultRegistry
}

// shortName returns the class name of a type id, e.g. "Conv2d", for error messages.
func shortName(typeId string) string {
	for ii := len(typeId) - 1; ii >= 0; ii-- {
		if typeId[ii] == '.' {
			return typeId[ii+1:]
		}
	}
	return typeId
}

// RegisterStandard registers all standard operations in r. It panics if any of them is already registered.
func RegisterStandard(r *Registry) {
	unary := func(typeId string, family Family, rule Rule, params ...ParamSpec) {
		r.MustRegister(OpDef{Type: typeId, Family: family, MinInputs: 1, MaxInputs: 1, Params: params, Rule: rule})
	}

	for _, typeId := range []string{ReLU, ReLU6, LeakyReLU, ELU, GELU, Sigmoid, Tanh, Hardswish, SiLU, Softmax,
		Dropout, Dropout2d, Identity, AtenRelu, AtenSigmoid, AtenTanh} {
		unary(typeId, FamilyElementwise, elementwiseRule)
	}
	unary(BatchNorm1d, FamilyElementwise, batchNormRule(shortName(BatchNorm1d), 2, 3), ParamSpec{Name: "num_features"})
	unary(BatchNorm2d, FamilyElementwise, batchNormRule(shortName(BatchNorm2d), 4), ParamSpec{Name: "num_features"})
	unary(BatchNorm3d, FamilyElementwise, batchNormRule(shortName(BatchNorm3d), 5), ParamSpec{Name: "num_features"})
	unary(LayerNorm, FamilyElementwise, layerNormRule, ParamSpec{Name: "normalized_shape", Required: true})

	windowParams := []ParamSpec{{Name: "kernel_size", Required: true}, {Name: "stride"}, {Name: "padding"}, {Name: "dilation"}}
	convParams := append([]ParamSpec{{Name: "in_channels"}, {Name: "out_channels", Required: true}, {Name: "groups"}},
		windowParams...)
	poolParams := append([]ParamSpec{{Name: "ceil_mode"}}, windowParams...)
	for spatialRank, typeId := range map[int]string{1: Conv1d, 2: Conv2d, 3: Conv3d} {
		unary(typeId, FamilyConvolution, convRule(shortName(typeId), spatialRank), convParams...)
	}
	for spatialRank, typeIds := range map[int][]string{1: {MaxPool1d, AvgPool1d}, 2: {MaxPool2d, AvgPool2d}, 3: {MaxPool3d, AvgPool3d}} {
		for _, typeId := range typeIds {
			unary(typeId, FamilyPooling, poolRule(shortName(typeId), spatialRank), poolParams...)
		}
	}
	for spatialRank, typeIds := range map[int][]string{1: {AdaptiveAvgPool1d, AdaptiveMaxPool1d},
		2: {AdaptiveAvgPool2d, AdaptiveMaxPool2d}, 3: {AdaptiveAvgPool3d, AdaptiveMaxPool3d}} {
		for _, typeId := range typeIds {
			unary(typeId, FamilyPooling, adaptivePoolRule(shortName(typeId), spatialRank),
				ParamSpec{Name: "output_size", Required: true})
		}
	}

	unary(Linear, FamilyLinear, linearRule, ParamSpec{Name: "in_features"}, ParamSpec{Name: "out_features", Required: true})
	unary(Flatten, FamilyReshape, flattenRule("Flatten", 1), ParamSpec{Name: "start_dim"}, ParamSpec{Name: "end_dim"})
	unary(AtenFlatten, FamilyReshape, flattenRule(AtenFlatten, 0), ParamSpec{Name: "start_dim"}, ParamSpec{Name: "end_dim"})

	for _, typeId := range []string{AtenAdd, AtenSub, AtenMul} {
		r.MustRegister(OpDef{Type: typeId, Family: FamilyBinary, MinInputs: 2, MaxInputs: 2, Rule: broadcastRule(typeId)})
	}
	r.MustRegister(OpDef{Type: AtenCat, Family: FamilyConcat, MinInputs: 1, MaxInputs: Unbounded,
		Params: []ParamSpec{{Name: "dim"}}, Rule: catRule})
	unary(AtenChunk, FamilySplit, chunkRule, ParamSpec{Name: "chunks", Required: true}, ParamSpec{Name: "dim"})
	unary(AtenSplit, FamilySplit, splitRule, ParamSpec{Name: "split_size_or_sections", Required: true}, ParamSpec{Name: "dim"})
}
