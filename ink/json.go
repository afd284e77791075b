// Copyright (c) 2024 Fantom Foundation
//
// Use of this software is governed by the Business Source License included
// in the LICENSE file and at fantom.foundation/bsl11.
//
// Change Date: 2028-4-16
//
// On the date above, in accordance with the Business Source License, use of
// this software will be governed by the GNU Lesser General Public License v3.

// Bidirectional mapping between the compiled JSON shape and the in-memory
// node graph.
//
// ENCODING SCHEME
//
//	Glue:           "<>", "G<", "G>" (legacy forms accepted on load)
//
//	ControlCommand: "ev", "out", "/ev", "du", "pop", "->->", "~ret", "str",
//	                "/str", "#", "/#", "nop", "choiceCnt", "turn", "turns",
//	                "readc", "rnd", "srnd", "visit", "seq", "thread", "done",
//	                "end", "listInt", "range", "lrnd"
//
//	NativeFunction: "+", "-", "/", "*", "%", "_", "==", ">", "<", ">=",
//	                "<=", "!=", "!", "&&", "||", "MIN", "MAX", ... ("L^" is
//	                intersect "^", re-encoded to avoid collision with the
//	                string prefix)
//
//	Void:           "void"
//
//	Value:          "^string value", "^^string value beginning with ^"
//	                5, 5.2
//	                {"^->": "path.target"}
//	                {"^var": "varname", "ci": 0}
//	                {"list": {"origin.item": 1}, "origins": ["origin"]}
//
//	Container:      [..., {"subContainerName": ..., "#f": 5, "#n": "name"}]
//	                (terminator null when there is nothing to record)
//
//	Divert:         {"->": "path.target", "c": true}
//	                {"->": "targetvar", "var": true}
//	                {"f()": "path.func"}
//	                {"->t->": "path.tunnel"}
//	                {"x()": "externalFuncName", "exArgs": 5}
//
//	Var Assign:     {"VAR=": "varName", "re": true}   (re = reassignment)
//	                {"temp=": "varName"}
//
//	Var ref:        {"VAR?": "varName"}
//	                {"CNT?": "stitch name"}
//
//	ChoicePoint:    {"*": pathString, "flg": 18}
//
//	Tag:            {"#": "the tag text"}  (legacy, load only)

package ink

import (
	"encoding/json"
	"strconv"
	"strings"
)

// loadJSONTree parses a JSON document into the generic token tree used by
// the loader, preserving the int/float distinction of number literals.
func loadJSONTree(jsonText string) (any, error) {
	decoder := json.NewDecoder(strings.NewReader(jsonText))
	decoder.UseNumber()
	var root any
	if err := decoder.Decode(&root); err != nil {
		return nil, err
	}
	return root, nil
}

// jsonInt reads an int out of a decoded JSON token.
func jsonInt(tok any) int {
	switch v := tok.(type) {
	case json.Number:
		i, _ := strconv.Atoi(v.String())
		return i
	case int:
		return v
	case float64:
		return int(v)
	}
	return 0
}

func intKey(i int) string {
	return strconv.Itoa(i)
}

// jsonFloat is the writer-side representation of a float value: the raw
// message guarantees a decimal point, so it is read back as a float.
func jsonFloat(f float64) json.RawMessage {
	str := formatFloat(f)
	if !strings.ContainsAny(str, ".eE") {
		str += ".0"
	}
	return json.RawMessage(str)
}

// jsonTokenToRuntimeObject converts a single decoded token to its node.
func jsonTokenToRuntimeObject(token any) (Object, error) {
	switch tok := token.(type) {
	case json.Number:
		if strings.ContainsAny(tok.String(), ".eE") {
			f, err := tok.Float64()
			if err != nil {
				return nil, err
			}
			return NewFloatValue(f), nil
		}
		i, err := tok.Int64()
		if err != nil {
			return nil, err
		}
		return NewIntValue(int(i)), nil

	case bool:
		return NewBoolValue(tok), nil

	case string:
		return jsonStringToRuntimeObject(tok)

	case map[string]any:
		return jsonObjectToRuntimeObject(tok)

	case []any:
		return jsonArrayToContainer(tok)

	case nil:
		return nil, nil
	}

	return nil, storyErrorf("failed to convert token to runtime object: '%v'", token)
}

func jsonStringToRuntimeObject(str string) (Object, error) {
	if len(str) > 0 && (str[0] == '^' || str == "\n") {
		if str == "\n" {
			return NewStringValue(str), nil
		}
		return NewStringValue(str[1:]), nil
	}

	// Glue, including the legacy left/right forms.
	if str == "<>" || str == "G<" || str == "G>" {
		return NewGlue(), nil
	}

	if ControlCommandExistsWithName(str) {
		return ControlCommandWithName(str), nil
	}

	// The intersect operator is re-encoded to avoid colliding with the "^"
	// string prefix.
	if str == "L^" {
		str = FuncIntersect
	}
	if NativeFunctionExistsWithName(str) {
		return NewNativeFunctionCall(str), nil
	}

	if str == "void" {
		return NewVoid(), nil
	}

	return nil, storyErrorf("failed to convert token to runtime object: '%s'", str)
}

func jsonObjectToRuntimeObject(obj map[string]any) (Object, error) {
	// Divert target value to path
	if propValue, ok := obj["^->"]; ok {
		return NewDivertTargetValue(NewPathFromString(toString(propValue))), nil
	}

	// Variable pointer value
	if propValue, ok := obj["^var"]; ok {
		pointer := NewVariablePointerValue(toString(propValue), -1)
		if ci, ok := obj["ci"]; ok {
			pointer.ContextIndex = jsonInt(ci)
		}
		return pointer, nil
	}

	// Divert
	isDivert := false
	pushesToStack := false
	divPushType := PushPopFunction
	external := false
	var propValue any
	var ok bool
	if propValue, ok = obj["->"]; ok {
		isDivert = true
	} else if propValue, ok = obj["f()"]; ok {
		isDivert = true
		pushesToStack = true
		divPushType = PushPopFunction
	} else if propValue, ok = obj["->t->"]; ok {
		isDivert = true
		pushesToStack = true
		divPushType = PushPopTunnel
	} else if propValue, ok = obj["x()"]; ok {
		isDivert = true
		external = true
	}
	if isDivert {
		divert := NewDivert()
		divert.PushesToStack = pushesToStack
		divert.StackPushType = divPushType
		divert.IsExternal = external

		target := toString(propValue)
		if _, ok := obj["var"]; ok {
			divert.VariableDivertName = target
		} else {
			divert.SetTargetPathString(target)
		}

		_, divert.IsConditional = obj["c"]

		if external {
			if exArgs, ok := obj["exArgs"]; ok {
				divert.ExternalArgs = jsonInt(exArgs)
			}
		}

		return divert, nil
	}

	// Choice point
	if propValue, ok := obj["*"]; ok {
		choice := NewChoicePoint()
		choice.SetPathStringOnChoice(toString(propValue))
		if flg, ok := obj["flg"]; ok {
			choice.SetFlags(jsonInt(flg))
		}
		return choice, nil
	}

	// Variable reference
	if propValue, ok := obj["VAR?"]; ok {
		return NewVariableReference(toString(propValue)), nil
	}
	if propValue, ok := obj["CNT?"]; ok {
		readCountVarRef := NewVariableReference("")
		readCountVarRef.SetPathStringForCount(toString(propValue))
		return readCountVarRef, nil
	}

	// Variable assignment
	isVarAss := false
	isGlobalVar := false
	if propValue, ok = obj["VAR="]; ok {
		isVarAss = true
		isGlobalVar = true
	} else if propValue, ok = obj["temp="]; ok {
		isVarAss = true
	}
	if isVarAss {
		_, isReassignment := obj["re"]
		varAss := NewVariableAssignment(toString(propValue), !isReassignment)
		varAss.IsGlobal = isGlobalVar
		return varAss, nil
	}

	// Legacy tag with text
	if propValue, ok := obj["#"]; ok {
		return NewTag(toString(propValue)), nil
	}

	// List value; the "list" key is checked with containment so that empty
	// lists load too.
	if listContent, ok := obj["list"].(map[string]any); ok {
		rawList := NewList()
		if origins, ok := obj["origins"].([]any); ok {
			names := make([]string, 0, len(origins))
			for _, o := range origins {
				names = append(names, toString(o))
			}
			rawList.SetInitialOriginNames(names)
		}
		for name, val := range listContent {
			rawList.Set(ListItemFromFullName(name), jsonInt(val))
		}
		return NewListValue(rawList), nil
	}

	// Used when serializing save state only
	if _, ok := obj["originalChoicePath"]; ok {
		return choiceFromJSON(obj), nil
	}

	return nil, storyErrorf("failed to convert token to runtime object: '%v'", obj)
}

func toString(v any) string {
	if s, ok := v.(string); ok {
		return s
	}
	if n, ok := v.(json.Number); ok {
		return n.String()
	}
	return ""
}

func jsonArrayToContainer(jArray []any) (*Container, error) {
	container := NewContainer()
	if len(jArray) == 0 {
		return container, nil
	}

	for _, token := range jArray[:len(jArray)-1] {
		obj, err := jsonTokenToRuntimeObject(token)
		if err != nil {
			return nil, err
		}
		container.AddContent(obj)
	}

	// The final element is the terminator: named-only content and flags.
	if terminator, ok := jArray[len(jArray)-1].(map[string]any); ok {
		for key, value := range terminator {
			switch key {
			case "#f":
				container.SetCountFlags(jsonInt(value))
			case "#n":
				container.Name = toString(value)
			default:
				namedContentItem, err := jsonTokenToRuntimeObject(value)
				if err != nil {
					return nil, err
				}
				if namedSubContainer, ok := namedContentItem.(*Container); ok {
					namedSubContainer.Name = key
				}
				if nc, ok := namedContentItem.(namedContent); ok {
					container.AddToNamedContentOnly(nc)
				}
			}
		}
	}

	return container, nil
}

func jsonArrayToRuntimeObjList(jArray []any) ([]Object, error) {
	list := make([]Object, 0, len(jArray))
	for _, token := range jArray {
		obj, err := jsonTokenToRuntimeObject(token)
		if err != nil {
			return nil, err
		}
		list = append(list, obj)
	}
	return list, nil
}

func readObjectDictionary(jObject map[string]any) (map[string]Object, error) {
	dict := make(map[string]Object, len(jObject))
	for key, token := range jObject {
		obj, err := jsonTokenToRuntimeObject(token)
		if err != nil {
			return nil, err
		}
		dict[key] = obj
	}
	return dict, nil
}

func jsonObjectToIntDictionary(jObject map[string]any) map[string]int {
	dict := make(map[string]int, len(jObject))
	for key, value := range jObject {
		dict[key] = jsonInt(value)
	}
	return dict
}

func intDictionaryToJSON(dict map[string]int) map[string]any {
	result := make(map[string]any, len(dict))
	for key, value := range dict {
		result[key] = value
	}
	return result
}

// jsonTokenToListDefinitions reads the top-level "listDefs" object.
func jsonTokenToListDefinitions(token any) *ListDefinitionsOrigin {
	defsObj, _ := token.(map[string]any)

	allDefs := make([]*ListDefinition, 0, len(defsObj))
	for name, listDefJSON := range defsObj {
		listDefObj, _ := listDefJSON.(map[string]any)
		items := make(map[string]int, len(listDefObj))
		for itemName, value := range listDefObj {
			items[itemName] = jsonInt(value)
		}
		allDefs = append(allDefs, NewListDefinition(name, items))
	}

	return NewListDefinitionsOrigin(allDefs)
}

func writeListDefinitions(origin *ListDefinitionsOrigin) map[string]any {
	result := map[string]any{}
	for _, def := range origin.Lists() {
		items := map[string]any{}
		for name, value := range def.ItemNameToValue() {
			items[name] = value
		}
		result[def.Name()] = items
	}
	return result
}

// Writing

func writeListRuntimeObjs(list []Object) []any {
	result := make([]any, 0, len(list))
	for _, obj := range list {
		result = append(result, writeRuntimeObject(obj))
	}
	return result
}

func writeObjectDictionary(dict map[string]Object) map[string]any {
	result := make(map[string]any, len(dict))
	for name, obj := range dict {
		result[name] = writeRuntimeObject(obj)
	}
	return result
}

func writeRuntimeContainer(container *Container, withoutName bool) []any {
	result := make([]any, 0, len(container.Content)+1)
	for _, content := range container.Content {
		result = append(result, writeRuntimeObject(content))
	}

	// Container is always written with a terminator, even if the terminator
	// itself has nothing to record.
	namedOnlyContent := container.NamedOnlyContent()
	countFlags := container.CountFlags()
	hasNameProperty := container.Name != "" && !withoutName

	if len(namedOnlyContent) > 0 || countFlags > 0 || hasNameProperty {
		terminator := map[string]any{}
		for name, content := range namedOnlyContent {
			if namedContainer, ok := content.(*Container); ok {
				terminator[name] = writeRuntimeContainer(namedContainer, true)
			}
		}
		if countFlags > 0 {
			terminator["#f"] = countFlags
		}
		if hasNameProperty {
			terminator["#n"] = container.Name
		}
		result = append(result, terminator)
	} else {
		result = append(result, nil)
	}

	return result
}

func writeRuntimeObject(obj Object) any {
	switch o := obj.(type) {
	case *Container:
		return writeRuntimeContainer(o, false)

	case *Divert:
		divTypeKey := "->"
		if o.IsExternal {
			divTypeKey = "x()"
		} else if o.PushesToStack {
			if o.StackPushType == PushPopFunction {
				divTypeKey = "f()"
			} else if o.StackPushType == PushPopTunnel {
				divTypeKey = "->t->"
			}
		}

		var targetStr string
		if o.HasVariableTarget() {
			targetStr = o.VariableDivertName
		} else {
			targetStr = o.TargetPathString()
		}

		result := map[string]any{divTypeKey: targetStr}
		if o.HasVariableTarget() {
			result["var"] = true
		}
		if o.IsConditional {
			result["c"] = true
		}
		if o.ExternalArgs > 0 {
			result["exArgs"] = o.ExternalArgs
		}
		return result

	case *ChoicePoint:
		return map[string]any{"*": o.PathStringOnChoice(), "flg": o.Flags()}

	case *BoolValue:
		return o.Value

	case *IntValue:
		return o.Value

	case *FloatValue:
		return jsonFloat(o.Value)

	case *StringValue:
		if o.IsNewline() {
			return "\n"
		}
		return "^" + o.Value

	case *ListValue:
		items := map[string]any{}
		for _, e := range o.Value.orderedItems() {
			items[e.item.FullName()] = e.value
		}
		result := map[string]any{"list": items}
		if o.Value.Count() == 0 && len(o.Value.OriginNames()) > 0 {
			origins := make([]any, 0)
			for _, name := range o.Value.OriginNames() {
				origins = append(origins, name)
			}
			result["origins"] = origins
		}
		return result

	case *DivertTargetValue:
		return map[string]any{"^->": o.TargetPath.String()}

	case *VariablePointerValue:
		return map[string]any{"^var": o.VariableName, "ci": o.ContextIndex}

	case *Glue:
		return "<>"

	case *ControlCommand:
		return o.Name()

	case *NativeFunctionCall:
		name := o.Name()
		// Avoid collision with the "^" string prefix.
		if name == FuncIntersect {
			name = "L^"
		}
		return name

	case *VariableReference:
		if readCountPath := o.PathStringForCount(); readCountPath != "" {
			return map[string]any{"CNT?": readCountPath}
		}
		return map[string]any{"VAR?": o.Name}

	case *VariableAssignment:
		key := "temp="
		if o.IsGlobal {
			key = "VAR="
		}
		result := map[string]any{key: o.VariableName}
		if !o.IsNewDeclaration {
			result["re"] = true
		}
		return result

	case *Void:
		return "void"

	case *Tag:
		return map[string]any{"#": o.Text}

	case *Choice:
		return writeChoice(o)
	}

	panic("failed to write runtime object to JSON: " + objString(obj))
}

func objString(obj Object) string {
	type stringer interface{ String() string }
	if s, ok := obj.(stringer); ok {
		return s.String()
	}
	return "unknown object"
}

// Choices (save state only)

func writeChoice(choice *Choice) map[string]any {
	result := map[string]any{
		"text":                choice.Text,
		"index":               choice.Index,
		"originalChoicePath":  choice.SourcePath,
		"originalThreadIndex": choice.originalThreadIndex,
		"targetPath":          choice.PathStringOnChoice(),
	}
	if len(choice.Tags) > 0 {
		tags := make([]any, 0, len(choice.Tags))
		for _, tag := range choice.Tags {
			tags = append(tags, tag)
		}
		result["tags"] = tags
	}
	return result
}

func choiceFromJSON(jObj map[string]any) *Choice {
	choice := &Choice{}
	choice.Text, _ = jObj["text"].(string)
	choice.Index = jsonInt(jObj["index"])
	choice.SourcePath, _ = jObj["originalChoicePath"].(string)
	choice.originalThreadIndex = jsonInt(jObj["originalThreadIndex"])
	if targetPath, ok := jObj["targetPath"].(string); ok {
		choice.SetPathStringOnChoice(targetPath)
	}
	if jTags, ok := jObj["tags"].([]any); ok {
		for _, t := range jTags {
			choice.Tags = append(choice.Tags, toString(t))
		}
	}
	return choice
}

// marshalJSONTree renders a generic token tree to compact JSON text.
func marshalJSONTree(tree any) (string, error) {
	var sb strings.Builder
	encoder := json.NewEncoder(&sb)
	encoder.SetEscapeHTML(false)
	if err := encoder.Encode(tree); err != nil {
		return "", err
	}
	return strings.TrimSuffix(sb.String(), "\n"), nil
}
