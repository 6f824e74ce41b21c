package dfg

// PythonBuiltins are names available in every Python module without a
// declaration.
var PythonBuiltins = []string{
	// Constants and module attributes.
	"True", "False", "None", "Ellipsis", "NotImplemented",
	"__name__", "__file__", "__doc__", "__package__", "__spec__", "__loader__",
	"__builtins__", "__debug__", "__path__", "__annotations__", "__dict__",
	"__class__", "__module__", "__qualname__", "__all__", "__version__",

	// Functions.
	"abs", "aiter", "all", "anext", "any", "ascii", "bin", "breakpoint",
	"callable", "chr", "compile", "copyright", "credits", "delattr", "dir",
	"divmod", "eval", "exec", "exit", "format", "getattr", "globals",
	"hasattr", "hash", "help", "hex", "id", "input", "isinstance",
	"issubclass", "iter", "len", "license", "locals", "max", "min", "next",
	"oct", "open", "ord", "pow", "print", "quit", "repr", "round", "setattr",
	"sorted", "sum", "vars", "__import__",

	// Types.
	"bool", "bytearray", "bytes", "classmethod", "complex", "dict",
	"enumerate", "filter", "float", "frozenset", "int", "list", "map",
	"memoryview", "object", "property", "range", "reversed", "set", "slice",
	"staticmethod", "str", "super", "tuple", "type", "zip",

	// Exceptions.
	"ArithmeticError", "AssertionError", "AttributeError", "BaseException",
	"BaseExceptionGroup", "BlockingIOError", "BrokenPipeError", "BufferError",
	"BytesWarning", "ChildProcessError", "ConnectionAbortedError",
	"ConnectionError", "ConnectionRefusedError", "ConnectionResetError",
	"DeprecationWarning", "EOFError", "EncodingWarning", "EnvironmentError",
	"Exception", "ExceptionGroup", "FileExistsError", "FileNotFoundError",
	"FloatingPointError", "FutureWarning", "GeneratorExit", "IOError",
	"ImportError", "ImportWarning", "IndentationError", "IndexError",
	"InterruptedError", "IsADirectoryError", "KeyError", "KeyboardInterrupt",
	"LookupError", "MemoryError", "ModuleNotFoundError", "NameError",
	"NotADirectoryError", "NotImplementedError", "OSError", "OverflowError",
	"PendingDeprecationWarning", "PermissionError", "ProcessLookupError",
	"RecursionError", "ReferenceError", "ResourceWarning", "RuntimeError",
	"RuntimeWarning", "StopAsyncIteration", "StopIteration", "SyntaxError",
	"SyntaxWarning", "SystemError", "SystemExit", "TabError", "TimeoutError",
	"TypeError", "UnboundLocalError", "UnicodeDecodeError",
	"UnicodeEncodeError", "UnicodeError", "UnicodeTranslateError",
	"UnicodeWarning", "UserWarning", "ValueError", "Warning",
	"ZeroDivisionError",
}

// DefaultIgnorePrefixes mark names as intentionally unused.
var DefaultIgnorePrefixes = []string{"_"}

// DefaultIgnoreNames are receiver parameters that are never reported.
var DefaultIgnoreNames = []string{"self", "cls"}
